package tracker

import (
	"fmt"
	"math"
)

// Read returns field f of the record behind h. Step fields read the step at
// the current index.
func (r *Registry) Read(h Handle, f Field) (Value, error) {
	return r.read(h, f, -1)
}

// ReadAt is Read with an explicit step index for the step fields. The index
// must lie in [0, MaxPathLength); indexes past the computed path read its
// last waypoint. Non-step fields ignore the index.
func (r *Registry) ReadAt(h Handle, f Field, index int) (Value, error) {
	if index < 0 || index >= MaxPathLength {
		return Value{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return r.read(h, f, index)
}

func (r *Registry) read(h Handle, f Field, index int) (Value, error) {
	if !f.Valid() {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	rec, ok := r.records[h]
	if !ok {
		return Value{}, fmt.Errorf("%w: handle %s", ErrNotFound, h)
	}

	if f.stepped() {
		return r.readStep(rec, f, index)
	}
	switch f {
	case FieldGoal:
		return VectorValue(rec.currentGoal), nil
	case FieldLength:
		return IntValue(rec.count), nil
	case FieldIndex:
		if rec.count == 0 {
			return IntValue(0), nil
		}
		return IntValue(rec.clampStep(rec.index)), nil
	case FieldUpdate:
		return FloatValue(rec.update), nil
	case FieldUpdateMin:
		return FloatValue(rec.updateMin), nil
	default:
		return FloatValue(rec.updateMax), nil
	}
}

func (r *Registry) readStep(rec *PathProgress, f Field, index int) (Value, error) {
	explicit := index >= 0
	if !explicit {
		index = rec.index
	}

	if rec.count == 0 {
		switch f {
		case FieldPath:
			// an empty path points at wherever the subject stands
			if pos, ok := r.cfg.Entities.Position(rec.subject); ok {
				return VectorValue(pos), nil
			}
		case FieldArea:
			if !explicit {
				return AreaValue(rec.currentArea), nil
			}
		}
		return Value{}, ErrEmptyPath
	}

	step := rec.clampStep(index)
	wp := rec.path[step]
	switch f {
	case FieldPath:
		return VectorValue(wp.Pos), nil
	case FieldPathHow:
		return IntValue(int(wp.How)), nil
	case FieldPathFlags:
		attrs, err := r.cfg.Nav.AreaAttributes(wp.Area)
		if err != nil {
			return Value{}, err
		}
		return IntValue(int(attrs)), nil
	default:
		if !explicit {
			return AreaValue(rec.currentArea), nil
		}
		return AreaValue(wp.Area), nil
	}
}

// Write sets a writable field. Index, Update, UpdateMin, UpdateMax and Goal
// are writable; anything else is rejected without touching the record.
func (r *Registry) Write(h Handle, f Field, v Value) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	rec, ok := r.records[h]
	if !ok {
		return fmt.Errorf("%w: handle %s", ErrNotFound, h)
	}

	switch f {
	case FieldIndex:
		if v.Kind != KindInt {
			return kindError(f, v)
		}
		index := v.Int
		switch {
		case rec.count == 0 || index < 0:
			index = 0
		case index >= rec.count:
			index = rec.count - 1
		}
		rec.setIndex(index)
	case FieldGoal:
		if v.Kind != KindVector {
			return kindError(f, v)
		}
		rec.currentGoal = v.Vec
	case FieldUpdate, FieldUpdateMin, FieldUpdateMax:
		value, ok := v.asFloat()
		if !ok {
			return kindError(f, v)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: %s", ErrNonFinite, f)
		}
		switch f {
		case FieldUpdate:
			rec.update = value
		case FieldUpdateMin:
			rec.setUpdateMin(value)
		default:
			rec.setUpdateMax(value)
		}
	default:
		return fmt.Errorf("%w: %s", ErrFieldNotWritable, f)
	}
	return nil
}

func kindError(f Field, v Value) error {
	return fmt.Errorf("%w: %s takes %s, got %s", ErrValueKind, f, fieldKind(f), v.Kind)
}

func fieldKind(f Field) ValueKind {
	switch f {
	case FieldPath, FieldGoal:
		return KindVector
	case FieldArea:
		return KindArea
	case FieldUpdate, FieldUpdateMin, FieldUpdateMax:
		return KindFloat
	default:
		return KindInt
	}
}
