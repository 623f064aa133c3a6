package kubejs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/mclokit/extract"
)

const script = `// priority: 0
PlayerEvents.loggedIn(event => {
  event.player.tell("Welcome to the pack!")
  event.player.tell(Text.of('Don\'t forget to read the quests').gold())
  console.log(` + "`Player joined`" + `)
  console.log(` + "`Player ${event.player.name} joined`" + `)
  event.server.tell( "Line one\nLine two" )
  event.player.give("minecraft:stone")
  sendMessage(someVariable)
  tell("")
})
`

func TestFindSlots(t *testing.T) {
	slots, err := Extractor{}.FindSlots([]byte(script))
	require.NoError(t, err)

	var got []string
	for _, s := range slots {
		got = append(got, s.Path.String()+"="+s.Text)
	}
	assert.Equal(t, []string{
		"player.tell.[0]=Welcome to the pack!",
		"Text.of.[0]=Don't forget to read the quests",
		"console.log.[0]=Player joined",
		"server.tell.[0]=Line one\nLine two",
	}, got)
}

func TestRewrite(t *testing.T) {
	out, err := Extractor{}.Rewrite([]byte(script), map[string]string{
		"Welcome to the pack!":            `Добро пожаловать в "сборку"!`,
		"Don't forget to read the quests": "Не забудьте прочитать 'квесты'",
		"Player joined":                   "Игрок `зашёл`",
		"Line one\nLine two":              "Строка один\nСтрока два",
		"minecraft:stone":                 "камень",
	})
	require.NoError(t, err)

	want := script
	for _, r := range [][2]string{
		{`tell("Welcome to the pack!")`, `tell("Добро пожаловать в \"сборку\"!")`},
		{`Text.of('Don\'t forget to read the quests')`, `Text.of('Не забудьте прочитать \'квесты\'')`},
		{"console.log(`Player joined`)", "console.log(`Игрок \\`зашёл\\``)"},
		{`tell( "Line one\nLine two" )`, `tell( "Строка один\nСтрока два" )`},
	} {
		require.Contains(t, want, r[0])
		want = strings.Replace(want, r[0], r[1], 1)
	}
	assert.Equal(t, want, string(out))
}

func TestTemplateWithSubstitutionIsNeverASlot(t *testing.T) {
	slots, err := Extractor{}.FindSlots([]byte("tell(`Hi ${name}`)"))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestIdentityRewrite(t *testing.T) {
	slots, err := Extractor{}.FindSlots([]byte(script))
	require.NoError(t, err)
	out, err := Extractor{}.Rewrite([]byte(script), extract.Identity(slots))
	require.NoError(t, err)
	assert.Equal(t, script, string(out))
}

func TestQuoteUnquote(t *testing.T) {
	cases := []struct {
		s string
		q byte
	}{
		{"plain", '"'},
		{`back\slash "and" quotes`, '"'},
		{"it's\ttabbed\nand broken", '\''},
		{"tick ` and \\ slash\nnewline", '`'},
	}
	for _, tc := range cases {
		lit := quote(tc.s, tc.q)
		if got := unquote(lit[1:len(lit)-1], tc.q); got != tc.s {
			t.Errorf("unquote(quote(%q)) = %q", tc.s, got)
		}
	}
}
