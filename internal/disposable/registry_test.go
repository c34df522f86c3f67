package disposable

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_SeedMembership(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.IsDisposable("mailinator.com"))
	assert.True(t, r.IsDisposable("MAILINATOR.COM"))
	assert.False(t, r.IsDisposable("gmail.com"))
	assert.Greater(t, r.Len(), 0)
}

func TestRegistry_RemoteUnion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["burner-extra.example"]`))
	}))
	defer srv.Close()

	r := NewRegistry(WithRemoteURL(srv.URL, time.Second))
	assert.True(t, r.IsDisposable("burner-extra.example"))
	assert.True(t, r.IsDisposable("mailinator.com"))
}

func TestRegistry_RemoteFailureIsNonFatal(t *testing.T) {
	r := NewRegistry(WithRemoteURL("http://127.0.0.1:0/nope", 50*time.Millisecond))
	assert.True(t, r.IsDisposable("mailinator.com"))
}
