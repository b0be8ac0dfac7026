package main

import (
	"lotkeeper/cmd/lotkeeper-cli/commands"
	"lotkeeper/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
