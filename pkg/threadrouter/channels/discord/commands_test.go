package discord

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (m *memDocs) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.docs[key]
	if !ok {
		return nil, settings.ErrDocumentNotFound
	}
	return body, nil
}

func (m *memDocs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func (m *memDocs) Put(ctx context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = body
	return nil
}

type staticCategories map[string]string

func (s staticCategories) CategoryName(ctx context.Context, id string) (string, bool, error) {
	name, ok := s[id]
	return name, ok, nil
}

func newTestCommands(t *testing.T, max int) (*Commands, *settings.Manager) {
	t.Helper()
	mgr := settings.NewManager(settings.NewDocumentStore(&memDocs{docs: map[string][]byte{}}, ""), max, nil)
	require.NoError(t, mgr.Load(context.Background()))
	cats := staticCategories{"100": "Billing", "200": "Abuse", "300": "Appeals"}
	return NewCommands(mgr, menu.Reactive{}, cats, []string{"admin"}, nil), mgr
}

func run(c *Commands, content string) string {
	inv, ok := parseCommand(content, "!cm")
	if !ok {
		return ""
	}
	inv.Roles = []string{"admin"}
	reply := c.Run(context.Background(), inv)
	if reply == nil {
		return ""
	}
	if len(reply.Embeds) > 0 {
		return reply.Embeds[0].Description
	}
	return reply.Content
}

func TestParseCommand(t *testing.T) {
	inv, ok := parseCommand("  !CM describe  Hello there\nsecond line ", "!cm")
	require.True(t, ok)
	assert.Equal(t, "describe", inv.Sub)
	assert.Equal(t, "Hello there\nsecond line", inv.Text)
	assert.Equal(t, []string{"Hello", "there", "second", "line"}, inv.Args)

	_, ok = parseCommand("!cmd toggle", "!cm")
	assert.False(t, ok)
	_, ok = parseCommand("hello", "!cm")
	assert.False(t, ok)
}

func TestCommands_RequiresAdminRole(t *testing.T) {
	c, mgr := newTestCommands(t, 9)
	reply := c.Run(context.Background(), Invocation{Sub: "toggle", Roles: []string{"member"}})
	assert.Contains(t, reply.Content, "not allowed")
	assert.True(t, mgr.Snapshot().Enabled)
}

func TestCommands_Toggle(t *testing.T) {
	c, mgr := newTestCommands(t, 9)
	assert.Equal(t, "Category menu disabled.", run(c, "!cm toggle"))
	assert.False(t, mgr.Snapshot().Enabled)
	assert.Equal(t, "Category menu enabled.", run(c, "!cm toggle"))
}

func TestCommands_Category(t *testing.T) {
	c, mgr := newTestCommands(t, 2)

	assert.Equal(t, "Added `Billing`.", run(c, "!cm category 100"))
	assert.Equal(t, "Added `Abuse reports`.", run(c, "!cm category 200 Abuse reports"))
	assert.Equal(t, "You can only have up to 2 categories.", run(c, "!cm category 300"))
	assert.Equal(t, "`999` is not a category.", run(c, "!cm category 999"))
	assert.Equal(t, "Removed `Billing`.", run(c, "!cm category 100"))

	cfg := mgr.Snapshot()
	require.Len(t, cfg.Categories, 1)
	assert.Equal(t, "200", cfg.Categories[0].ID)
}

func TestCommands_Describe(t *testing.T) {
	c, mgr := newTestCommands(t, 9)
	assert.Equal(t, "Menu description updated.", run(c, "!cm describe What do you need help with?"))
	assert.Equal(t, "What do you need help with?", mgr.Snapshot().MenuDescription)

	assert.Contains(t, run(c, "!cm describe"), settings.DefaultMenuDescription)
	assert.Equal(t, settings.DefaultMenuDescription, mgr.Snapshot().MenuDescription)
}

func TestCommands_Mentions(t *testing.T) {
	c, mgr := newTestCommands(t, 9)
	run(c, "!cm category 100")

	assert.Equal(t, "`Billing` now mentions 3 target(s).", run(c, "!cm mentions 100 <@&11> <@!22> 33 nonsense"))
	cat, _ := mgr.Snapshot().Category("100")
	assert.Equal(t, []settings.MentionTarget{
		{ID: "11", Kind: settings.MentionRole},
		{ID: "22", Kind: settings.MentionUser},
		{ID: "33", Kind: settings.MentionAuto},
	}, cat.Mentions)

	assert.Equal(t, "That category is not configured.", run(c, "!cm mentions 555 <@1>"))
}

func TestCommands_EmbedPreview(t *testing.T) {
	c, _ := newTestCommands(t, 9)
	run(c, "!cm category 100")
	run(c, "!cm category 200")

	want := settings.DefaultMenuDescription + "\n\n1️⃣ - Billing\n2️⃣ - Abuse"
	assert.Equal(t, want, run(c, "!cm embed"))
	assert.Equal(t, want, run(c, "!cm categories"))
}

func TestCommands_PreviewRoles(t *testing.T) {
	c, mgr := newTestCommands(t, 9)
	run(c, "!cm category 100")
	c.SetPreviewRoles([]string{"moderator"})

	for _, sub := range []string{"embed", "categories"} {
		reply := c.Run(context.Background(), Invocation{Sub: sub, Roles: []string{"moderator"}})
		require.Len(t, reply.Embeds, 1, sub)
		assert.Contains(t, reply.Embeds[0].Description, "Billing")
	}

	reply := c.Run(context.Background(), Invocation{Sub: "toggle", Roles: []string{"moderator"}})
	assert.Contains(t, reply.Content, "not allowed")
	assert.True(t, mgr.Snapshot().Enabled)

	reply = c.Run(context.Background(), Invocation{Sub: "embed", Roles: []string{"member"}})
	assert.Contains(t, reply.Content, "not allowed")
}

func TestCommands_Usage(t *testing.T) {
	c, _ := newTestCommands(t, 9)
	assert.Equal(t, usage, run(c, "!cm"))
	assert.Equal(t, usage, run(c, "!cm category"))
}
