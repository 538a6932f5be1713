package mdsa_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/pkg/domain"
)

func TestSanitizeQuery(t *testing.T) {
	got, err := mdsa.SanitizeQuery("Transfer\x1b[31m $100\x00 to savings\n", 0)
	require.NoError(t, err)
	assert.Equal(t, "Transfer[31m $100 to savings\n", got)

	_, err = mdsa.SanitizeQuery(strings.Repeat("a", 11), 10)
	assert.ErrorIs(t, err, domain.ErrQueryTooLarge)

	_, err = mdsa.SanitizeQuery("bad \xff byte", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidUTF8)
}

func TestOrchestrator_RejectsOversizedQuery(t *testing.T) {
	o := newOrchestrator(t, mdsa.WithMaxQueryBytes(16))

	res := o.ProcessRequest(context.Background(), "Transfer $100 to savings right now", nil)

	require.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, domain.ErrorKindValidation, res.Metadata.ErrorKind)
	assert.Contains(t, res.Message, domain.ErrQueryTooLarge.Error())
}
