package svrattr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOwner struct{ key string }

func (f fakeOwner) GetKey() string { return f.key }

func TestStore_SetGet(t *testing.T) {
	table := NewTable()
	table.Register(JobName, BaseDef{AttrName: "jobname"})

	var actionCalls []Mode
	table.Register(ExitStatus, actionDef{
		BaseDef: BaseDef{AttrName: "exit_status"},
		action: func(_ Owner, mode Mode, _ any) error {
			actionCalls = append(actionCalls, mode)
			return nil
		},
	})

	store := NewStore(table, fakeOwner{key: "123[].host"})

	require.NoError(t, store.Set(JobName, "myjob", ModeNew))
	v, ok := store.Get(JobName)
	assert.True(t, ok)
	assert.Equal(t, "myjob", v)
	assert.True(t, store.IsDirty(JobName))

	require.NoError(t, store.Set(ExitStatus, 0, ModeAlter))
	assert.Equal(t, []Mode{ModeAlter}, actionCalls)

	// ModeInternal bypasses the action hook.
	require.NoError(t, store.Set(ExitStatus, 1, ModeInternal))
	assert.Equal(t, []Mode{ModeAlter}, actionCalls)
}

func TestStore_EncodedCachedAndInvalidated(t *testing.T) {
	table := NewTable()
	encodeCalls := 0
	table.Register(JobName, encodeDef{
		BaseDef: BaseDef{AttrName: "jobname"},
		encode: func(v any) (string, error) {
			encodeCalls++
			return v.(string), nil
		},
	})
	store := NewStore(table, fakeOwner{})

	require.NoError(t, store.Set(JobName, "a", ModeNew))
	enc, err := store.Encoded(JobName)
	require.NoError(t, err)
	assert.Equal(t, "a", enc)

	_, _ = store.Encoded(JobName)
	assert.Equal(t, 1, encodeCalls, "second call should hit the cache")

	require.NoError(t, store.Set(JobName, "b", ModeNew))
	enc, err = store.Encoded(JobName)
	require.NoError(t, err)
	assert.Equal(t, "b", enc)
	assert.Equal(t, 2, encodeCalls, "mutation invalidates the cache")
}

func TestStore_SetDefault_SkipsActionAndDirty(t *testing.T) {
	table := NewTable()
	called := false
	table.Register(JobName, actionDef{
		BaseDef: BaseDef{AttrName: "jobname"},
		action:  func(_ Owner, _ Mode, _ any) error { called = true; return nil },
	})
	store := NewStore(table, fakeOwner{})

	store.SetDefault(JobName, "default-name")
	assert.False(t, called)
	assert.False(t, store.IsDirty(JobName))
	v, ok := store.Get(JobName)
	assert.True(t, ok)
	assert.Equal(t, "default-name", v)
	assert.True(t, store.Flags(JobName).Has(FlagDefault))
}

func TestStore_ClearDirty(t *testing.T) {
	table := NewTable()
	table.Register(JobName, BaseDef{AttrName: "jobname"})
	store := NewStore(table, fakeOwner{})

	require.NoError(t, store.Set(JobName, "x", ModeNew))
	assert.Len(t, store.DirtyIDs(), 1)
	store.ClearDirty()
	assert.Empty(t, store.DirtyIDs())
}

func TestTable_LookupUnknown(t *testing.T) {
	table := NewTable()
	_, _, err := table.Lookup("nonexistent")
	var unknown *UnknownAttribute
	assert.ErrorAs(t, err, &unknown)
}

type actionDef struct {
	BaseDef
	action func(Owner, Mode, any) error
}

func (d actionDef) Action(o Owner, m Mode, v any) error { return d.action(o, m, v) }

type encodeDef struct {
	BaseDef
	encode func(any) (string, error)
}

func (d encodeDef) Encode(v any) (string, error) { return d.encode(v) }
