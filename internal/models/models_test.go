package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("alice", "bob"), PairKey("bob", "alice"))
	assert.Equal(t, "5:alice|3:bob", PairKey("bob", "alice"))
	assert.NotEqual(t, PairKey("a", "bc"), PairKey("ab", "c"))
}

func TestPairKeyIsInjectiveForSeparatorIDs(t *testing.T) {
	assert.NotEqual(t, PairKey("a:b", "c"), PairKey("a", "b:c"))
	assert.NotEqual(t, PairKey("a|1:b", "c"), PairKey("a", "1:b|c"))
	assert.NotEqual(t, PairKey("", "a:b"), PairKey("a", "b"))
}

func TestKindForContentType(t *testing.T) {
	assert.Equal(t, KindImage, KindForContentType("image/png"))
	assert.Equal(t, KindImage, KindForContentType("IMAGE/JPEG"))
	assert.Equal(t, KindFile, KindForContentType("application/pdf"))
	assert.Equal(t, KindFile, KindForContentType(""))
}

func TestMembershipVisible(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	open := Membership{}
	assert.True(t, open.Visible(now.Add(-time.Hour)))

	deleted := Membership{HorizonAt: &now}
	assert.False(t, deleted.Visible(now))
	assert.False(t, deleted.Visible(now.Add(-time.Second)))
	assert.True(t, deleted.Visible(now.Add(time.Microsecond)))
}
