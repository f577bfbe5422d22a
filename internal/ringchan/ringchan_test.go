package ringchan_test

import (
	"testing"

	"github.com/srg/buttond/internal/ringchan"
	"github.com/stretchr/testify/suite"
)

type RingChannelTestSuite struct {
	suite.Suite
}

func (suite *RingChannelTestSuite) TestSend_DropsOldestWhenFull() {
	// GOAL: Verify Send never blocks and discards the oldest buffered element
	//
	// TEST SCENARIO: Fill a capacity-3 ring with 10 values → only the last 3 remain → drop counter reflects the overwrites

	rc := ringchan.New[int](3)
	for i := 0; i < 10; i++ {
		rc.Send(i)
	}

	suite.Equal(3, rc.Len(), "buffer MUST hold exactly its capacity")
	suite.Equal(int64(7), rc.Dropped(), "7 of 10 sends MUST have displaced an older value")

	rc.Close()
	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}
	suite.Equal([]int{7, 8, 9}, got, "only the newest values survive")
}

func (suite *RingChannelTestSuite) TestTrySend_FailsWhenFull() {
	rc := ringchan.New[string](1)
	suite.True(rc.TrySend("a"), "first TrySend MUST succeed")
	suite.False(rc.TrySend("b"), "TrySend on a full buffer MUST fail without dropping")
	suite.Equal(int64(0), rc.Dropped())
}

func (suite *RingChannelTestSuite) TestNew_PanicsOnInvalidCapacity() {
	suite.Panics(func() { ringchan.New[int](0) })
}

func TestRingChannelTestSuite(t *testing.T) {
	suite.Run(t, new(RingChannelTestSuite))
}
