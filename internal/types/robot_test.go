package types

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validRobot() Robot {
	return Robot{
		ID:         "robot-1",
		Instrument: "BBG000B9XRY4",
		Ticker:     "AAPL",
		BuyPrice:   decimal.NewFromInt(100),
		SellPrice:  decimal.NewFromInt(110),
		MinShares:  0,
		MaxShares:  100,
		Lot:        10,
		Strategy:   StrategyPlain,
	}
}

func TestRobotValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Robot)
		code   errors.ErrorCode
	}{
		{name: "valid robot", mutate: func(_ *Robot) {}, code: 0},
		{
			name:   "buy price equal to sell price",
			mutate: func(r *Robot) { r.BuyPrice = decimal.NewFromInt(110) },
			code:   errors.ErrCodeInvalidPriceBand,
		},
		{
			name:   "buy price above sell price",
			mutate: func(r *Robot) { r.BuyPrice = decimal.NewFromInt(120) },
			code:   errors.ErrCodeInvalidPriceBand,
		},
		{
			name:   "zero lot",
			mutate: func(r *Robot) { r.Lot = 0 },
			code:   errors.ErrCodeInvalidRobot,
		},
		{
			name:   "unknown strategy",
			mutate: func(r *Robot) { r.Strategy = Strategy("martingale") },
			code:   errors.ErrCodeInvalidRobot,
		},
		{
			name:   "inverted bounds",
			mutate: func(r *Robot) { r.MinShares = 200 },
			code:   errors.ErrCodeInvalidRobot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			robot := validRobot()
			tt.mutate(&robot)

			err := robot.Validate()
			if tt.code == 0 {
				assert.NoError(t, err)

				return
			}

			assert.True(t, errors.HasCode(err, tt.code), "unexpected error: %v", err)
		})
	}
}

func TestRobotPlacementPriceFallback(t *testing.T) {
	robot := validRobot()
	assert.True(t, robot.BuyPlacementPrice().Equal(decimal.NewFromInt(100)))
	assert.True(t, robot.SellPlacementPrice().Equal(decimal.NewFromInt(110)))

	robot.PlaceBuyPrice = optional.Some(decimal.NewFromInt(101))
	robot.PlaceSellPrice = optional.Some(decimal.NewFromInt(109))
	assert.True(t, robot.BuyPlacementPrice().Equal(decimal.NewFromInt(101)))
	assert.True(t, robot.SellPlacementPrice().Equal(decimal.NewFromInt(109)))

	robot.PlaceBuyPrice = optional.Some(decimal.Zero)
	assert.True(t, robot.BuyPlacementPrice().Equal(decimal.NewFromInt(100)))
}

func TestRobotDerivedStates(t *testing.T) {
	robot := validRobot()
	robot.MinShares = 10
	robot.MaxShares = 50

	robot.Shares = 10
	assert.Equal(t, RobotStateAwaitingBuy, robot.BuyState())
	assert.Equal(t, RobotStateEmpty, robot.SellState())
	assert.True(t, robot.WithinBounds())

	robot.Shares = 30
	assert.Equal(t, RobotStateAwaitingBuy, robot.BuyState())
	assert.Equal(t, RobotStateAwaitingSell, robot.SellState())

	robot.Shares = 60
	assert.Equal(t, RobotStateFull, robot.BuyState())
	assert.False(t, robot.WithinBounds())
}

func TestRobotLifecycle(t *testing.T) {
	robot := validRobot()
	assert.Equal(t, LifecycleDisabled, robot.Lifecycle())

	robot.Enabled = true
	assert.Equal(t, LifecycleEnabled, robot.Lifecycle())

	robot.Enabled = false
	robot.Removed = true
	assert.Equal(t, LifecycleRemoved, robot.Lifecycle())
}
