package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	assert.Equal(t, "1700000000123-my_bank_card.png", ObjectName("my bank/card.png", now))
	assert.Equal(t, "1700000000123-a-b_c.JPG", ObjectName("a-b_c.JPG", now))
}

func TestNewAzureStoreRejectsBadKey(t *testing.T) {
	_, err := NewAzureStore(AzureConfig{AccountName: "acct", AccountKey: "not base64!"}, nil)
	assert.Error(t, err)
}
