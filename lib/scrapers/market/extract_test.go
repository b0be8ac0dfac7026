package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractLotInfo(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected LotInfo
	}{
		{
			name: "raise button only, no app data blob",
			html: `<body>
				<button class="js-lot-raise" data-game="123">Поднять предложения</button>
			</body>`,
			expected: LotInfo{GameID: "123"},
		},
		{
			name: "csrf from app data blob",
			html: `<body data-app-data="{&quot;csrf-token&quot;:&quot;tok123&quot;,&quot;game-id&quot;:41}">
			</body>`,
			expected: LotInfo{CSRFToken: "tok123", GameID: "41"},
		},
		{
			name: "csrf falls back to hidden input",
			html: `<body>
				<form><input type="hidden" name="csrf_token" value="hidden-tok"></form>
				<button class="js-lot-raise" data-game="7">Raise</button>
			</body>`,
			expected: LotInfo{CSRFToken: "hidden-tok", GameID: "7"},
		},
		{
			name: "game id falls back to generic data attribute",
			html: `<body>
				<div data-game-id="55"></div>
			</body>`,
			expected: LotInfo{GameID: "55"},
		},
		{
			name: "blob wins over hidden input for csrf",
			html: `<body data-app-data="{&quot;csrfToken&quot;:&quot;blob-tok&quot;}">
				<input type="hidden" name="csrf_token" value="input-tok">
			</body>`,
			expected: LotInfo{CSRFToken: "blob-tok"},
		},
		{
			name: "cooldown from warning alert",
			html: `<body>
				<div class="alert alert-warning">Подождите 2 часа до следующего поднятия.</div>
				<button class="js-lot-raise" data-game="9"></button>
			</body>`,
			expected: LotInfo{GameID: "9", Cooldown: 2 * time.Hour},
		},
		{
			name: "alert without wait marker is ignored",
			html: `<body>
				<div class="alert alert-warning">3 дня осталось до акции</div>
			</body>`,
			expected: LotInfo{},
		},
		{
			name:     "garbage page yields zero values, never panics",
			html:     `<<<not actually html`,
			expected: LotInfo{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractLotInfo(tc.html)
			require.Equal(t, tc.expected, got)
		})
	}
}
