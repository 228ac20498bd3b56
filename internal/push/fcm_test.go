package push

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, KindDelivered, Classify(nil))
	assert.Equal(t, KindTransient, Classify(errors.New("connection reset")))
}

func TestBuildMulticast(t *testing.T) {
	badge := 3
	msg := Message{
		Title: "New follower",
		Body:  "Aki started following you",
		Data:  map[string]string{"type": "follow"},
		Badge: &badge,
	}

	m := buildMulticast([]string{"a", "b"}, msg)

	assert.Equal(t, []string{"a", "b"}, m.Tokens)
	assert.Equal(t, "New follower", m.Notification.Title)
	assert.Equal(t, "follow", m.Data["type"])
	require.NotNil(t, m.APNS.Payload.Aps.Badge)
	assert.Equal(t, 3, *m.APNS.Payload.Aps.Badge)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "delivered", KindDelivered.String())
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "permanent", KindPermanent.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
