package proxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDirect(t *testing.T) {
	c, err := NewClient("", 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, c.Transport)
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestNewClientSocks(t *testing.T) {
	c, err := NewClient("127.0.0.1:1080", time.Second)
	require.NoError(t, err)
	_, ok := c.Transport.(*http.Transport)
	assert.True(t, ok)
}
