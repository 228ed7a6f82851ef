package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRoute(t *testing.T) {
	t.Run("united states", func(t *testing.T) {
		route := ResolveRoute("US")
		assert.Equal(t, []string{"911"}, route.EmergencyNumbers)
		assert.Contains(t, route.HotlineNumbers, "988")
		assert.False(t, route.NeedsReview)
	})

	t.Run("canada includes bilingual hotlines", func(t *testing.T) {
		route := ResolveRoute("CA")
		assert.Equal(t, []string{"911"}, route.EmergencyNumbers)
		assert.Contains(t, route.HotlineNumbers, "988")
		assert.Contains(t, route.HotlineNumbers, "1-833-456-4566")
		assert.ElementsMatch(t, []string{"en", "fr"}, route.Languages)
		assert.False(t, route.NeedsReview)
	})

	t.Run("region code is normalized", func(t *testing.T) {
		assert.Equal(t, "GB", ResolveRoute(" gb ").Region)
	})

	t.Run("unknown region flagged for review", func(t *testing.T) {
		route := ResolveRoute("ZZ")
		assert.True(t, route.NeedsReview)
		assert.NotEmpty(t, route.EmergencyNumbers)
		assert.NotEmpty(t, route.HotlineNumbers)
	})
}
