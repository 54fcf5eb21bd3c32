package datagen

import "carewatch/internal/types"

// classPattern is the sensor envelope readings of one activity class are
// drawn from. Base values are uniform over the range; gaussian noise at a
// third of the variance is layered on top before clamping.
type classPattern struct {
	motionMin, motionMax float64
	soundMin, soundMax   float64
	tempMin, tempMax     float64
	// nightWeight is the chance the reading lands in a night hour.
	nightWeight    float64
	motionVariance float64
	soundVariance  float64
}

var classPatterns = map[types.ActivityClass]classPattern{
	types.ActivitySleeping: {
		motionMin: 0, motionMax: 15,
		soundMin: 20, soundMax: 60,
		tempMin: 20.0, tempMax: 23.0,
		nightWeight:    0.8,
		motionVariance: 5,
		soundVariance:  10,
	},
	types.ActivityResting: {
		motionMin: 10, motionMax: 30,
		soundMin: 40, soundMax: 80,
		tempMin: 21.0, tempMax: 24.0,
		nightWeight:    0.3,
		motionVariance: 8,
		soundVariance:  15,
	},
	types.ActivityActive: {
		motionMin: 40, motionMax: 75,
		soundMin: 70, soundMax: 130,
		tempMin: 22.0, tempMax: 26.0,
		nightWeight:    0.1,
		motionVariance: 15,
		soundVariance:  25,
	},
	types.ActivityRestless: {
		motionMin: 50, motionMax: 85,
		soundMin: 90, soundMax: 160,
		tempMin: 23.0, tempMax: 27.0,
		nightWeight:    0.4,
		motionVariance: 25,
		soundVariance:  35,
	},
	types.ActivityFallRisk: {
		motionMin: 60, motionMax: 90,
		soundMin: 100, soundMax: 180,
		tempMin: 22.0, tempMax: 26.0,
		nightWeight:    0.5,
		motionVariance: 30,
		soundVariance:  40,
	},
	types.ActivityFallDetected: {
		motionMin: 85, motionMax: 100,
		soundMin: 150, soundMax: 250,
		tempMin: 22.0, tempMax: 26.0,
		nightWeight:    0.4,
		motionVariance: 10,
		soundVariance:  30,
	},
}

// Distribution is the share of generated samples per activity class,
// reflecting the mix seen on a monitored ward.
var Distribution = map[types.ActivityClass]float64{
	types.ActivitySleeping:     0.25,
	types.ActivityResting:      0.30,
	types.ActivityActive:       0.25,
	types.ActivityRestless:     0.10,
	types.ActivityFallRisk:     0.07,
	types.ActivityFallDetected: 0.03,
}
