package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"vvm/internal/bytecode"
	"vvm/internal/langtypes"
)

func TestKeyOfIsDeterministic(t *testing.T) {
	k1 := KeyOf("1 + 1", "script")
	k2 := KeyOf("1 + 1", "script")
	require.Equal(t, k1, k2)
}

func TestKeyOfDistinguishesSourceAndMode(t *testing.T) {
	require.NotEqual(t, KeyOf("1 + 1", "script"), KeyOf("1 + 2", "script"))
	require.NotEqual(t, KeyOf("1 + 1", "script"), KeyOf("1 + 1", "interactive"))
}

func TestKeyOfSeparatorAvoidsConcatenationCollision(t *testing.T) {
	// Without an internal separator, ("ab","c") and ("a","bc") would hash
	// identically since both concatenate to "abc".
	require.NotEqual(t, KeyOf("ab", "c"), KeyOf("a", "bc"))
}

func newProgram() *bytecode.Program {
	return bytecode.NewProgram(langtypes.NewRegistry(), bytecode.NewSpecTable())
}

func TestCompileCachesByKey(t *testing.T) {
	c := New()
	key := KeyOf("src", "script")
	calls := int32(0)

	first, err := c.Compile(key, func() (*bytecode.Program, error) {
		atomic.AddInt32(&calls, 1)
		return newProgram(), nil
	})
	require.NoError(t, err)

	second, err := c.Compile(key, func() (*bytecode.Program, error) {
		atomic.AddInt32(&calls, 1)
		return newProgram(), nil
	})
	require.NoError(t, err)

	require.Same(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "a cache hit must not invoke fn again")
}

func TestCompilePropagatesCompileError(t *testing.T) {
	c := New()
	key := KeyOf("bad", "script")
	wantErr := errors.New("boom")

	_, err := c.Compile(key, func() (*bytecode.Program, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestCompileDeduplicatesConcurrentCompiles(t *testing.T) {
	c := New()
	key := KeyOf("concurrent", "script")
	calls := int32(0)
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*bytecode.Program, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			prog, err := c.Compile(key, func() (*bytecode.Program, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return newProgram(), nil
			})
			require.NoError(t, err)
			results[idx] = prog
		}(i)
	}

	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "singleflight must collapse concurrent compiles of the same key")
	for _, r := range results {
		require.Same(t, results[0], r)
	}
}
