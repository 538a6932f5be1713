package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/registry"
)

func TestRegistry(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("upper", func(_ context.Context, args map[string]any) (any, error) {
		return args["query"].(string) + "!", nil
	})
	r.Register("fail", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	assert.Equal(t, []string{"fail", "upper"}, r.Names())
	assert.True(t, r.Has("upper"))
	assert.False(t, r.Has("lookup"))

	out, err := r.Execute(context.Background(), "upper", map[string]any{"query": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)

	_, err = r.Execute(context.Background(), "fail", nil)
	assert.EqualError(t, err, "boom")

	_, err = r.Execute(context.Background(), "lookup", nil)
	assert.ErrorIs(t, err, registry.ErrToolNotFound)
}
