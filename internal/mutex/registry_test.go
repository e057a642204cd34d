package mutex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
	registry *Registry[string]
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (suite *RegistryTestSuite) SetupTest() {
	suite.registry = NewRegistry[string]()
}

func (suite *RegistryTestSuite) TestTryLockIsExclusive() {
	suite.True(suite.registry.TryLock("robot-1"))
	suite.False(suite.registry.TryLock("robot-1"))
	suite.True(suite.registry.TryLock("robot-2"))
	suite.Equal(2, suite.registry.Len())
}

func (suite *RegistryTestSuite) TestUnlock() {
	suite.True(suite.registry.TryLock("robot-1"))
	suite.registry.Unlock("robot-1")
	suite.False(suite.registry.IsLocked("robot-1"))
	suite.True(suite.registry.TryLock("robot-1"))

	// unlocking an absent key is a no-op
	suite.registry.Unlock("never-locked")
	suite.False(suite.registry.IsLocked("never-locked"))
}

func (suite *RegistryTestSuite) TestUnlockAfterDoesNotBlock() {
	suite.True(suite.registry.TryLock("robot-1"))

	start := time.Now()
	suite.registry.UnlockAfter("robot-1", 50*time.Millisecond)
	suite.Less(time.Since(start), 20*time.Millisecond)

	suite.True(suite.registry.IsLocked("robot-1"))
	suite.Eventually(func() bool {
		return !suite.registry.IsLocked("robot-1")
	}, time.Second, 5*time.Millisecond)
}

func (suite *RegistryTestSuite) TestUnlockAfterZeroReleasesImmediately() {
	suite.True(suite.registry.TryLock("robot-1"))
	suite.registry.UnlockAfter("robot-1", 0)
	suite.False(suite.registry.IsLocked("robot-1"))
}

func (suite *RegistryTestSuite) TestStaleTimerDoesNotReleaseNewLock() {
	suite.True(suite.registry.TryLock("robot-1"))
	suite.registry.UnlockAfter("robot-1", 30*time.Millisecond)
	suite.registry.Unlock("robot-1")
	suite.True(suite.registry.TryLock("robot-1"))

	time.Sleep(60 * time.Millisecond)
	suite.True(suite.registry.IsLocked("robot-1"))
}

func (suite *RegistryTestSuite) TestTakeLocked() {
	suite.False(suite.registry.TakeLocked("robot-1"))

	suite.registry.Lock("robot-1")
	suite.registry.Lock("robot-1")
	suite.True(suite.registry.TakeLocked("robot-1"))
	suite.False(suite.registry.TakeLocked("robot-1"))
}

func (suite *RegistryTestSuite) TestConcurrentTryLockSingleWinner() {
	var winners atomic.Int32

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if suite.registry.TryLock("robot-1") {
				winners.Add(1)
			}
		}()
	}

	wg.Wait()
	suite.Equal(int32(1), winners.Load())
}

func (suite *RegistryTestSuite) TestIntegerKeys() {
	registry := NewRegistry[int]()
	suite.True(registry.TryLock(7))
	suite.False(registry.TryLock(7))
	registry.Unlock(7)
	suite.False(registry.IsLocked(7))
}
