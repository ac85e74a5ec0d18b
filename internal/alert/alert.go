// Package alert receives biometric stress alerts from a wearable bridge
// and classifies sensor readings into zones.
package alert

import (
	"context"
	"time"
)

// DefaultAddr is where the receiver listens and the simulator sends
const DefaultAddr = "127.0.0.1:65432"

// Reading is one wrist sensor sample
type Reading struct {
	BVP  float64 `json:"bvp"`
	EDA  float64 `json:"eda"`
	Temp float64 `json:"temp"`
}

// Zone is the EDA-based stress zone of a reading
type Zone string

const (
	ZoneNormal       Zone = "normal"
	ZoneIntermediate Zone = "intermediate"
	ZoneStress       Zone = "stress"
)

// Sensor ranges considered typical for a relaxed wearer
const (
	BVPNormalMin  = -16.5
	BVPNormalMax  = 16.0
	TempNormalMin = 31.5
	TempNormalMax = 32.7
	TempHighMax   = 33.3

	edaIntermediate = 1.0
	edaStress       = 2.0
)

// ClassifyEDA maps electrodermal activity (µS) to a zone:
// below 1 is normal, below 2 intermediate, anything else stress.
func ClassifyEDA(eda float64) Zone {
	switch {
	case eda < edaIntermediate:
		return ZoneNormal
	case eda < edaStress:
		return ZoneIntermediate
	default:
		return ZoneStress
	}
}

// BVPInRange reports whether blood volume pulse is within the normal band
func BVPInRange(bvp float64) bool {
	return bvp >= BVPNormalMin && bvp <= BVPNormalMax
}

// TempStatus describes skin temperature as normal, elevated or atypical
func TempStatus(temp float64) string {
	switch {
	case temp >= TempNormalMin && temp <= TempNormalMax:
		return "normal"
	case temp > TempNormalMax && temp <= TempHighMax:
		return "elevated"
	default:
		return "atypical"
	}
}

// Alert is a received reading with its classification
type Alert struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Reading    Reading   `json:"reading"`
	Zone       Zone      `json:"zone"`
	BVPNormal  bool      `json:"bvp_normal"`
	TempStatus string    `json:"temp_status"`
	Source     string    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Stressed reports whether the alert's reading is in the stress zone
func (a Alert) Stressed() bool {
	return a.Zone == ZoneStress
}

// Classify builds an Alert from a reading
func Classify(r Reading) Alert {
	return Alert{
		Reading:    r,
		Zone:       ClassifyEDA(r.EDA),
		BVPNormal:  BVPInRange(r.BVP),
		TempStatus: TempStatus(r.Temp),
	}
}

// Label is an image classifier outcome
type Label string

const (
	LabelStress    Label = "Stress"
	LabelNonStress Label = "Non-Stress"
	LabelNeutral   Label = "Neutral"
)

// Classification is the result of classifying one image
type Classification struct {
	Label         Label             `json:"label"`
	Confidence    float64           `json:"confidence"`
	Probabilities map[Label]float64 `json:"probabilities"`
}

// Classifier labels face images. Implementations live outside this module.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Classification, error)
}
