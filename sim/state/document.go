package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/codec"
)

// File names written by WriteRunDocuments.
const (
	InitFileName   = "init.json"
	ResultFileName = "result.json"
)

// ResultState describes how a run ended.
type ResultState struct {
	ParentID          string          `json:"parentId"`
	ID                string          `json:"id"`
	StartTime         float64         `json:"startTime"`
	Duration          float64         `json:"duration"`
	ReasonsToLeave    []ReasonToLeave `json:"reasonsToLeave"`
	MeasurementSeries *MeasurementSet `json:"measurementSeries"`
	Utility           *float64        `json:"utility"`
	OutgoingPolicyIDs []string        `json:"outgoingPolicyIds"`
}

// InitState is the state a following run starts from.
type InitState struct {
	ID          string
	PointInTime float64
	Snapshot    *sim.Snapshot
}

type initDocument struct {
	ID          string          `json:"id"`
	PointInTime float64         `json:"pointInTime"`
	Snapshot    json.RawMessage `json:"snapshot"`
}

// EncodeInit writes the init document of s.
func EncodeInit(s *InitState, enc *codec.Encoder) ([]byte, error) {
	snap, err := enc.EncodeSnapshot(s.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot of run %s: %w", s.ID, err)
	}
	return json.MarshalIndent(initDocument{ID: s.ID, PointInTime: s.PointInTime, Snapshot: snap}, "", "  ")
}

// DecodeInit reads an init document.
func DecodeInit(data []byte, dec *codec.Decoder) (*InitState, error) {
	var doc initDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: init document: %v", codec.ErrMalformed, err)
	}
	if len(doc.Snapshot) == 0 {
		return nil, fmt.Errorf("%w: init document %q has no snapshot", codec.ErrMalformed, doc.ID)
	}
	snap, err := dec.DecodeSnapshot(doc.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot of run %s: %w", doc.ID, err)
	}
	return &InitState{ID: doc.ID, PointInTime: doc.PointInTime, Snapshot: snap}, nil
}

// LoadInit reads the init document at path.
func LoadInit(path string, dec *codec.Decoder) (*InitState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading init document: %w", err)
	}
	return DecodeInit(data, dec)
}

// EncodeResult writes the result document of r.
func EncodeResult(r *ResultState) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// DecodeResult reads a result document.
func DecodeResult(data []byte) (*ResultState, error) {
	var r ResultState
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: result document: %v", codec.ErrMalformed, err)
	}
	return &r, nil
}

// WriteRunDocuments writes the init and result documents of a run into dir,
// concurrently. Either document may be nil.
func WriteRunDocuments(ctx context.Context, dir string, init *InitState, result *ResultState, enc *codec.Encoder) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	if init != nil {
		g.Go(func() error {
			data, err := EncodeInit(init, enc)
			if err != nil {
				return err
			}
			return writeFile(ctx, filepath.Join(dir, InitFileName), data)
		})
	}
	if result != nil {
		g.Go(func() error {
			data, err := EncodeResult(result)
			if err != nil {
				return fmt.Errorf("encoding result of run %s: %w", result.ID, err)
			}
			return writeFile(ctx, filepath.Join(dir, ResultFileName), data)
		})
	}
	return g.Wait()
}

func writeFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logrus.Infof("wrote %s (%d bytes)", path, len(data))
	return nil
}
