package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrodata/refdata/pkg/types"
)

func TestEUCoordinatorColdStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"substance_id": 1, "substance_name": "Glyphosate", "substance_category": "HB"}]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewEUCoordinator(EUConfig{Dir: dir, URL: srv.URL})
	defer c.Stop()

	require.NoError(t, c.Initialise(context.Background()))
	require.True(t, c.State().Ready)

	sub, err := c.GetSubstance(1)
	require.NoError(t, err)
	require.Equal(t, "Glyphosate", sub.SubstanceName)
}

func TestEUCoordinatorNotReadyBeforeInitialise(t *testing.T) {
	c := NewEUCoordinator(EUConfig{Dir: t.TempDir()})
	defer c.Stop()

	_, err := c.GetByCas("1071-83-6")
	require.ErrorIs(t, err, types.ErrNotReady)
}
