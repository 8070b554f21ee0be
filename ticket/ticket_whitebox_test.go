package ticket

import (
	"testing"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"

	"github.com/webvolta/zammad/resource"
)

func TestSetAttribute(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	t.Run("string attribute", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		require.NoError(t, tkt.SetAttribute(AttrTitle, "printer is broken"))
		value, ok := tkt.Attribute(AttrTitle)
		require.True(t, ok)
		require.Equal(t, "printer is broken", value)
	})

	t.Run("reference accepts uuid and uuid string", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		id := uuid.NewV4()
		require.NoError(t, tkt.SetAttribute(AttrOwnerID, id))
		value, _ := tkt.Attribute(AttrOwnerID)
		require.Equal(t, id, value)

		require.NoError(t, tkt.SetAttribute(AttrOwnerID, id.String()))
		value, _ = tkt.Attribute(AttrOwnerID)
		require.Equal(t, id, value)
	})

	t.Run("instant accepts RFC3339 string", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		require.NoError(t, tkt.SetAttribute(AttrPendingTime, "2026-08-28T10:00:00Z"))
		value, _ := tkt.Attribute(AttrPendingTime)
		instant, ok := value.(time.Time)
		require.True(t, ok)
		require.Equal(t, time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), instant)
	})

	t.Run("unknown attribute is rejected", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		require.Error(t, tkt.SetAttribute("does_not_exist", "x"))
	})

	t.Run("incompatible value is rejected, state unchanged", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		require.NoError(t, tkt.SetAttribute(AttrStateID, uuid.NewV4()))
		before, _ := tkt.Attribute(AttrStateID)
		require.Error(t, tkt.SetAttribute(AttrStateID, "not-a-reference"))
		after, _ := tkt.Attribute(AttrStateID)
		require.Equal(t, before, after)
	})
}

func TestChangeSet(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	t.Run("nil older reports creation", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		require.NoError(t, tkt.SetAttribute(AttrTitle, "welcome"))
		changes, err := tkt.ChangeSet(nil)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		require.Equal(t, AttrTitle, changes[0].AttributeName)
		require.Nil(t, changes[0].OldValue)
	})

	t.Run("same snapshot yields no changes", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		require.NoError(t, tkt.SetAttribute(AttrTitle, "welcome"))
		changes, err := tkt.ChangeSet(tkt.Copy())
		require.NoError(t, err)
		require.Empty(t, changes)
	})

	t.Run("different ticket id is rejected", func(t *testing.T) {
		a := New(uuid.NewV4())
		b := New(uuid.NewV4())
		_, err := a.ChangeSet(b)
		require.Error(t, err)
	})

	t.Run("attribute change between snapshots", func(t *testing.T) {
		tkt := New(uuid.NewV4())
		require.NoError(t, tkt.SetAttribute(AttrTitle, "old title"))
		older := tkt.Copy()
		require.NoError(t, tkt.SetAttribute(AttrTitle, "new title"))
		changes, err := tkt.ChangeSet(older)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		require.Equal(t, "old title", changes[0].OldValue)
		require.Equal(t, "new title", changes[0].NewValue)
	})
}

func TestTags(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	tkt := New(uuid.NewV4())
	tkt.AddTags([]string{"vip", "hardware"})
	require.Equal(t, []string{"vip", "hardware"}, tkt.Tags())

	// adding an existing tag keeps order and does not duplicate
	tkt.AddTags([]string{"hardware", "urgent"})
	require.Equal(t, []string{"vip", "hardware", "urgent"}, tkt.Tags())

	tkt.RemoveTags([]string{"hardware", "unknown"})
	require.Equal(t, []string{"vip", "urgent"}, tkt.Tags())
}

func TestArticlePreferences(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	t.Run("auto response defaults to allowed", func(t *testing.T) {
		a := &Article{}
		require.True(t, a.SendAutoResponse())
	})

	t.Run("auto response can be disallowed", func(t *testing.T) {
		a := &Article{}
		a.SetPreference(PreferenceSendAutoResponse, false)
		require.False(t, a.SendAutoResponse())
	})

	t.Run("copy detaches preferences", func(t *testing.T) {
		a := &Article{}
		a.SetPreference(PreferenceDedupKey, "key-a")
		cp := a.Copy()
		cp.SetPreference(PreferenceDedupKey, "key-b")
		value, _ := a.Preference(PreferenceDedupKey)
		require.Equal(t, "key-a", value)
	})
}

func TestArticleBodyAsHTML(t *testing.T) {
	resource.Require(t, resource.UnitTest)

	t.Run("plain text is escaped and line-broken", func(t *testing.T) {
		a := &Article{Body: "hello <world>\nsecond line", ContentType: "text/plain"}
		require.Equal(t, "hello &lt;world&gt;<br>second line", a.BodyAsHTML())
	})

	t.Run("html body passes through", func(t *testing.T) {
		a := &Article{Body: "<p>hello</p>", ContentType: "text/html"}
		require.Equal(t, "<p>hello</p>", a.BodyAsHTML())
	})
}
