package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"navbridge/internal/entity"
	"navbridge/internal/navmesh"
	"navbridge/internal/tracker"
)

func (b *Bridge) navLoad(args LoadArgs) (any, error) {
	status, err := b.cfg.Nav.Load(args.Path)
	result := LoadResult{Status: status.String(), Code: int(status)}
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Generation = b.cfg.Nav.Generation()
	return result, nil
}

func (b *Bridge) navUnload(none) (any, error) {
	before := b.cfg.Trackers.Len()
	b.cfg.Nav.Unload()
	return CountResult{Count: before - b.cfg.Trackers.Len()}, nil
}

func (b *Bridge) navLoaded(none) (any, error) {
	return LoadedResult{Loaded: b.cfg.Nav.Loaded(), Generation: b.cfg.Nav.Generation()}, nil
}

func (b *Bridge) navNearestArea(args NearestAreaArgs) (any, error) {
	ref, ok := b.cfg.Nav.NearestArea(args.Pos, args.IgnoreVertical)
	return NearestAreaResult{Found: ok, Area: ref}, nil
}

func (b *Bridge) navClosestPoint(args ClosestPointArgs) (any, error) {
	pos, err := b.cfg.Nav.ClosestPoint(args.Area, args.Pos)
	if err != nil {
		return nil, err
	}
	return PointResult{Pos: pos}, nil
}

func (b *Bridge) navAreaInfo(args AreaArgs) (any, error) {
	area, err := b.cfg.Nav.Area(args.Area)
	if err != nil {
		return nil, err
	}
	return AreaInfoResult{
		Area:       args.Area,
		Lo:         area.Extent.Lo,
		Hi:         area.Extent.Hi,
		Center:     area.Center(),
		Flags:      int(area.Attributes),
		Attributes: area.Attributes.Names(),
	}, nil
}

// pathCompute reports soft failures in the result rather than as a call
// error so scripts keep the handle they had.
func (b *Bridge) pathCompute(args ComputeArgs) (any, error) {
	route := navmesh.RouteFastest
	if args.Route != "" {
		parsed, err := navmesh.ParseRoute(args.Route)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
		}
		route = parsed
	}
	req := tracker.ComputeRequest{
		Handle:    tracker.Handle(args.Handle),
		Subject:   entity.ID(args.Subject),
		StartArea: args.StartArea,
		StartPos:  args.StartPos,
		GoalPos:   args.GoalPos,
		Route:     route,
	}
	if args.GoalArea != nil {
		req.GoalArea = *args.GoalArea
	}
	h, err := b.cfg.Trackers.Compute(req)
	if err != nil {
		if !isSoft(err) {
			return nil, err
		}
		return HandleResult{Handle: uint64(h), Error: err.Error()}, nil
	}
	return HandleResult{Handle: uint64(h)}, nil
}

func (b *Bridge) trackerCreate(args CreateArgs) (any, error) {
	var opts []tracker.Option
	if args.UpdateMin != nil || args.UpdateMax != nil {
		lo, hi := tracker.DefaultUpdateMin, tracker.DefaultUpdateMax
		if args.UpdateMin != nil {
			lo = *args.UpdateMin
		}
		if args.UpdateMax != nil {
			hi = *args.UpdateMax
		}
		opts = append(opts, tracker.WithRecheckBounds(lo, hi))
	}
	h, err := b.cfg.Trackers.Create(entity.ID(args.Subject), opts...)
	if err != nil {
		return HandleResult{Error: err.Error()}, nil
	}
	return HandleResult{Handle: uint64(h)}, nil
}

func (b *Bridge) trackerDestroy(args DestroyArgs) (any, error) {
	var result tracker.DestroyResult
	switch {
	case args.Handle != 0:
		result = b.cfg.Trackers.Destroy(tracker.Handle(args.Handle))
	case args.Subject != 0:
		result = b.cfg.Trackers.DestroyBySubject(entity.ID(args.Subject))
	default:
		return nil, fmt.Errorf("%w: handle or subject required", ErrBadArgs)
	}
	return FoundResult{Found: result.Found()}, nil
}

func (b *Bridge) trackerDestroyAll(none) (any, error) {
	return CountResult{Count: b.cfg.Trackers.DestroyAll()}, nil
}

func (b *Bridge) trackerRead(args ReadArgs) (any, error) {
	field, err := tracker.ParseField(args.Field)
	if err != nil {
		return nil, err
	}
	var value tracker.Value
	if args.Index != nil {
		value, err = b.cfg.Trackers.ReadAt(tracker.Handle(args.Handle), field, *args.Index)
	} else {
		value, err = b.cfg.Trackers.Read(tracker.Handle(args.Handle), field)
	}
	if err != nil {
		return nil, err
	}
	return valueResult(value), nil
}

func (b *Bridge) trackerWrite(args WriteArgs) (any, error) {
	field, err := tracker.ParseField(args.Field)
	if err != nil {
		return nil, err
	}
	value, err := decodeValue(field, args.Value)
	if err != nil {
		return nil, err
	}
	if err := b.cfg.Trackers.Write(tracker.Handle(args.Handle), field, value); err != nil {
		return nil, err
	}
	return AppliedResult{Applied: true}, nil
}

func (b *Bridge) trackerAdvance(args AdvanceArgs) (any, error) {
	advanced := b.cfg.Trackers.Advance(entity.ID(args.Subject), args.Tolerance, args.IgnoreVertical)
	return AdvancedResult{Advanced: advanced}, nil
}

func (b *Bridge) entitySpawn(args SpawnArgs) (any, error) {
	return EntityResult{Entity: uint64(b.cfg.Entities.Spawn(args.Pos))}, nil
}

func (b *Bridge) entityMove(args MoveArgs) (any, error) {
	if err := b.cfg.Entities.SetPosition(entity.ID(args.Entity), args.Pos); err != nil {
		return nil, err
	}
	return AppliedResult{Applied: true}, nil
}

// entityRemove also drops the subject's tracker so it cannot outlive it.
func (b *Bridge) entityRemove(args EntityArgs) (any, error) {
	id := entity.ID(args.Entity)
	if !b.cfg.Entities.Remove(id) {
		return FoundResult{}, nil
	}
	b.cfg.Trackers.DestroyBySubject(id)
	return FoundResult{Found: true}, nil
}

func (b *Bridge) entityPosition(args EntityArgs) (any, error) {
	pos, ok := b.cfg.Entities.Position(entity.ID(args.Entity))
	return PositionResult{Live: ok, Pos: pos}, nil
}

func isSoft(err error) bool {
	return navmesh.IsSoftFailure(err) || errors.Is(err, tracker.ErrMeshNotLoaded)
}

func valueResult(v tracker.Value) ValueResult {
	switch v.Kind {
	case tracker.KindVector:
		return ValueResult{Kind: v.Kind.String(), Value: v.Vec}
	case tracker.KindInt:
		return ValueResult{Kind: v.Kind.String(), Value: v.Int}
	case tracker.KindFloat:
		return ValueResult{Kind: v.Kind.String(), Value: v.Float}
	case tracker.KindArea:
		return ValueResult{Kind: v.Kind.String(), Value: v.Area}
	}
	return ValueResult{Kind: v.Kind.String()}
}

// decodeValue reads a JSON array as a vector and a number as an int for the
// index field or a float otherwise. The registry rejects mismatched kinds.
func decodeValue(field tracker.Field, raw json.RawMessage) (tracker.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var components []float32
		if err := json.Unmarshal(raw, &components); err != nil || len(components) != 3 {
			return tracker.Value{}, fmt.Errorf("%w: vector must be [x,y,z]", ErrBadArgs)
		}
		return tracker.VectorValue(navmesh.Vector{components[0], components[1], components[2]}), nil
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		return tracker.Value{}, fmt.Errorf("%w: value must be a number or [x,y,z]", ErrBadArgs)
	}
	if field == tracker.FieldIndex && number == float64(int(number)) {
		return tracker.IntValue(int(number)), nil
	}
	return tracker.FloatValue(number), nil
}
