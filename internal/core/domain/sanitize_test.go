package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/realtime-backend/internal/core/domain"
)

func TestSanitizeEventData(t *testing.T) {
	t.Run("strips sensitive keys at the top level", func(t *testing.T) {
		payload := map[string]interface{}{
			"id":            "tx-1",
			"amount":        120.50,
			"password":      "hunter2",
			"accessToken":   "abc",
			"client_secret": "def",
			"apiKey":        "ghi",
			"passwordHash":  "jkl",
		}

		cleaned, ok := domain.SanitizeEventData(payload).(map[string]interface{})
		require.True(t, ok)

		assert.Equal(t, map[string]interface{}{
			"id":     "tx-1",
			"amount": 120.50,
		}, cleaned)
	})

	t.Run("recurses into nested maps and slices", func(t *testing.T) {
		payload := map[string]interface{}{
			"account": map[string]interface{}{
				"id":     "acc-1",
				"secret": "s",
			},
			"transactions": []interface{}{
				map[string]interface{}{
					"id":        "tx-1",
					"AuthToken": "t",
				},
				"plain string",
			},
		}

		cleaned, ok := domain.SanitizeEventData(payload).(map[string]interface{})
		require.True(t, ok)

		account := cleaned["account"].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"id": "acc-1"}, account)

		transactions := cleaned["transactions"].([]interface{})
		require.Len(t, transactions, 2)
		assert.Equal(t, map[string]interface{}{"id": "tx-1"}, transactions[0])
		assert.Equal(t, "plain string", transactions[1])
	})

	t.Run("matching is case insensitive and substring based", func(t *testing.T) {
		payload := map[string]interface{}{
			"PASSWORD":     "a",
			"refreshToken": "b",
			"foreign_key":  "c",
			"keyboard":     "d", // contains "key"
			"safe":         "e",
		}

		cleaned := domain.SanitizeEventData(payload).(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"safe": "e"}, cleaned)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		payload := map[string]interface{}{
			"id":       "tx-1",
			"password": "hunter2",
		}

		_ = domain.SanitizeEventData(payload)

		assert.Equal(t, "hunter2", payload["password"])
	})

	t.Run("passes scalars through", func(t *testing.T) {
		assert.Equal(t, "hello", domain.SanitizeEventData("hello"))
		assert.Equal(t, 42, domain.SanitizeEventData(42))
		assert.Nil(t, domain.SanitizeEventData(nil))
	})
}
