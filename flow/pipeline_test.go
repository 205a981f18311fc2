package flow_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ext "github.com/imishinist/go-streamflow/extension"
	"github.com/imishinist/go-streamflow/flow"
)

func TestPipeline(t *testing.T) {
	t.Run("chains stages in order", func(t *testing.T) {
		source := ext.NewSliceSource([]string{"a", "bb", "c", "dd"})
		chain := flow.Pipeline(source,
			flow.NewFilter("short", func(s string) (bool, error) { return len(s) == 1, nil }, 1),
			flow.NewMap("upper", func(s string) (string, error) { return strings.ToUpper(s), nil }, 1),
			flow.NewPassThrough("tap"),
		)
		require.Len(t, chain.Stages(), 3)

		assert.Equal(t, []string{"A", "C"}, readSlice[string](chain.Out()))
		select {
		case <-chain.Finished():
		case <-time.After(time.Second):
			t.Fatal("chain did not finish")
		}
		_, ok := <-chain.Errors()
		assert.False(t, ok, "no failure, no error")
	})

	t.Run("reports the first failure once", func(t *testing.T) {
		first := errors.New("first")
		source := ext.NewSliceSource([]int{1, 2, 3})
		chain := flow.Pipeline(source,
			flow.NewMap("fails_first", func(i int) (int, error) {
				if i == 2 {
					return 0, first
				}
				return i, nil
			}, 1),
			flow.NewMap("fails_later", func(i int) (int, error) {
				return 0, errors.New("later")
			}, 1),
		)

		assert.Empty(t, readSlice[int](chain.Out()))

		var errs []error
		for err := range chain.Errors() {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		var stageErr *flow.StageError
		require.ErrorAs(t, errs[0], &stageErr)
		assert.Contains(t, []string{"fails_first", "fails_later"}, stageErr.Stage)
	})
}
