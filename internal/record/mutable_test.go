package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiftLowerUntouched(t *testing.T) {
	r := mustParse(t, `{"a":{"x":1},"b":[1,2]}`)
	out, err := Lift(r).Lower()
	require.NoError(t, err)

	assert.Same(t, r.root, out.root)
}

func TestLiftIsLazy(t *testing.T) {
	r := mustParse(t, `{"a":{"x":1},"b":{"y":2}}`)
	v := Lift(r)
	require.NoError(t, v.SetField("c", Lift(Int(3))))

	out, err := v.Lower()
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":1},"b":{"y":2},"c":3}`, Serialize(out))
	assert.Same(t, r.root.hash["a"], out.root.hash["a"])
	assert.Same(t, r.root.hash["b"], out.root.hash["b"])
	assert.Equal(t, `{"a":{"x":1},"b":{"y":2}}`, Serialize(r))
}

func TestMutableAliasing(t *testing.T) {
	r := mustParse(t, `{"a":{"x":1}}`)
	v := Lift(r)

	a := v.Field("a")
	require.NotNil(t, a)
	require.NoError(t, v.SetField("b", a))
	require.NoError(t, a.SetField("x", Lift(Int(2))))

	out, err := v.Lower()
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":2},"b":{"x":2}}`, Serialize(out))
	assert.Equal(t, `{"a":{"x":1}}`, Serialize(r))
}

func TestMutableAssignIsVisibleThroughAliases(t *testing.T) {
	v := Lift(Hash())
	shared := Lift(Int(1))
	require.NoError(t, v.SetField("p", shared))
	require.NoError(t, v.SetField("q", shared))

	shared.Assign(String("changed"))

	out, err := v.Lower()
	require.NoError(t, err)
	assert.Equal(t, `{"p":"changed","q":"changed"}`, Serialize(out))
}

func TestMutablePaths(t *testing.T) {
	v := Lift(Null())
	require.NoError(t, v.SetPath(MustPath("a/#2/b"), Lift(Int(7))))

	got, err := v.Resolve(MustPath("a/#2/b"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, KindInt, got.Kind())

	missing, err := v.Resolve(MustPath("a/#9/b"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	out, err := v.Lower()
	require.NoError(t, err)
	assert.Equal(t, `{"a":[null,null,{"b":7}]}`, Serialize(out))

	removed, err := v.DeletePath(MustPath("a/#2/b"))
	require.NoError(t, err)
	require.NotNil(t, removed)

	_, err = v.DeletePath(MustPath("a/#0"))
	assert.ErrorIs(t, err, ErrArrayDelete)

	err = v.SetPath(MustPath("a/k"), Lift(Int(1)))
	assert.True(t, IsTypeError(err))
}

func TestMutableAppend(t *testing.T) {
	v := Lift(mustParse(t, `{"l":[1]}`))
	l := v.Field("l")
	require.NoError(t, l.Append(Lift(Int(2))))
	assert.Equal(t, 2, l.Len())

	err := Lift(String("s")).Append(Lift(Int(1)))
	assert.True(t, IsTypeError(err))

	out, err := v.Lower()
	require.NoError(t, err)
	assert.Equal(t, `{"l":[1,2]}`, Serialize(out))
}

func TestLowerDetectsCycle(t *testing.T) {
	v := Lift(Hash())
	require.NoError(t, v.SetField("self", v))

	_, err := v.Lower()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestLowerSharedHandleIsNotACycle(t *testing.T) {
	v := Lift(Hash())
	leaf := Lift(Hash())
	require.NoError(t, leaf.SetField("n", Lift(Int(1))))
	require.NoError(t, v.SetField("a", leaf))
	require.NoError(t, v.SetField("b", leaf))

	out, err := v.Lower()
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"n":1},"b":{"n":1}}`, Serialize(out))
}
