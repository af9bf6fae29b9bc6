package sms

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	t.Run("posts the expected form", func(t *testing.T) {
		var gotKey, gotPhone, gotMessage, gotDevice string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			gotKey = r.Header.Get("apikey")
			gotPhone = r.PostFormValue("mobile_number")
			gotMessage = r.PostFormValue("message")
			gotDevice = r.PostFormValue("device")
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "key-1", "dev-7", 5*time.Second, slog.Default())
		err := c.Send(context.Background(), "+639171234567", "FLOOD ALERT")
		require.NoError(t, err)

		assert.Equal(t, "key-1", gotKey)
		assert.Equal(t, "+639171234567", gotPhone)
		assert.Equal(t, "FLOOD ALERT", gotMessage)
		assert.Equal(t, "dev-7", gotDevice)
	})

	t.Run("gateway rejection surfaces as error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid number", http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "key-1", "dev-7", 5*time.Second, slog.Default())
		err := c.Send(context.Background(), "+639171234567", "m")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
	})

	t.Run("timeout surfaces as error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "key-1", "dev-7", 20*time.Millisecond, slog.Default())
		err := c.Send(context.Background(), "+639171234567", "m")
		require.Error(t, err)
	})
}

func TestNopGateway(t *testing.T) {
	gw := &NopGateway{Logger: slog.Default()}
	assert.NoError(t, gw.Send(context.Background(), "+639171234567", "m"))
}
