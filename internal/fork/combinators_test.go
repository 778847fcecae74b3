package fork

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThen(t *testing.T) {
	fk := New(func() (int, error) { return 2, nil })
	doubled := Then(fk.AddBranch(), func(v int, err error) (int, error) {
		if err != nil {
			return 0, err
		}
		return v * 2, nil
	})

	v, err := doubled()
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestThenPropagatesUpstreamError(t *testing.T) {
	wantErr := errors.New("upstream failed")
	fk := New(func() (int, error) { return 0, wantErr })
	mapped := Then(fk.AddBranch(), func(v int, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return "ok", nil
	})

	_, err := mapped()
	assert.ErrorIs(t, err, wantErr)
}

func TestFlatten(t *testing.T) {
	outer := func() (Future[int], error) {
		return func() (int, error) { return 5, nil }, nil
	}

	v, err := Flatten(outer)()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestFlattenOuterError(t *testing.T) {
	wantErr := errors.New("outer failed")
	outer := func() (Future[int], error) { return nil, wantErr }

	_, err := Flatten(outer)()
	assert.ErrorIs(t, err, wantErr)
}

func TestSplit(t *testing.T) {
	fk := New(func() (int, error) { return 1, nil })
	a, b := Split(fk.AddBranch(), func(v int, err error) (int, string, error) {
		if err != nil {
			return 0, "", err
		}
		return v, "one", nil
	})

	av, aerr := a()
	require.NoError(t, aerr)
	assert.Equal(t, 1, av)

	bv, berr := b()
	require.NoError(t, berr)
	assert.Equal(t, "one", bv)
}

func TestSplitError(t *testing.T) {
	wantErr := errors.New("split source failed")
	fk := New(func() (int, error) { return 0, wantErr })
	a, b := Split(fk.AddBranch(), func(v int, err error) (int, string, error) {
		if err != nil {
			return 0, "", err
		}
		return v, "one", nil
	})

	_, aerr := a()
	_, berr := b()
	assert.ErrorIs(t, aerr, wantErr)
	assert.ErrorIs(t, berr, wantErr)
}

func TestSplitHalvesIndependentlyAwaitable(t *testing.T) {
	fk := New(func() (int, error) { return 7, nil })
	a, b := Split(fk.AddBranch(), func(v int, err error) (int, int, error) {
		return v, v * 10, err
	})

	// b alone, without ever calling a, still observes the upstream
	// result.
	bv, err := b()
	require.NoError(t, err)
	assert.Equal(t, 70, bv)

	av, err := a()
	require.NoError(t, err)
	assert.Equal(t, 7, av)
}
