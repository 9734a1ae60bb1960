package appfunctiondata

import (
	"github.com/ggoodman/appfunctions-go/internal/document"
	"github.com/ggoodman/appfunctions-go/metadata"
)

// Builder accumulates values for a Data. Every setter validates its input
// against the spec before touching any state, so a rejected call leaves the
// builder exactly as it was. A Builder is not safe for concurrent use.
type Builder struct {
	v      validator
	doc    *document.Builder
	extras *document.ExtrasBuilder
}

// NewBuilder returns a builder validated against obj.
func NewBuilder(obj *metadata.ObjectType, components metadata.Components) *Builder {
	return NewBuilderForSpec(NewObjectSpec(obj, components))
}

// NewParametersBuilder returns a builder for a function's arguments.
func NewParametersBuilder(params []metadata.ParameterMetadata, components metadata.Components) *Builder {
	return NewBuilderForSpec(NewParametersSpec(params, components))
}

// NewBuilderForSpec returns a builder validated against spec.
func NewBuilderForSpec(spec *DataSpec) *Builder {
	return &Builder{
		v:      spec,
		doc:    document.NewBuilder("", "", spec.QualifiedName()),
		extras: document.NewExtrasBuilder(),
	}
}

// NewLegacyBuilder returns a builder that performs no validation. The
// resulting container exposes id under the synthetic "id" key.
func NewLegacyBuilder(qualifiedName, id string) *Builder {
	return &Builder{
		v:      legacy{qualifiedName: qualifiedName},
		doc:    document.NewBuilder("", id, qualifiedName),
		extras: document.NewExtrasBuilder(),
	}
}

// Build returns the container. The builder may be discarded afterwards.
func (b *Builder) Build() *Data {
	return &Data{v: b.v, doc: b.doc.Build(), extras: b.extras.Build()}
}

func (b *Builder) clearExtras(key string) {
	b.extras.Remove(extrasKey(key)).RemovePrefix(extrasKey(key) + "[")
}

func (b *Builder) SetBoolean(key string, v bool) error {
	if err := b.v.validateWrite(key, kindBoolean, false, v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetBooleans(key, v)
	return nil
}

func (b *Builder) SetLong(key string, v int64) error {
	if err := b.v.validateWrite(key, kindLong, false, v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetLongs(key, v)
	return nil
}

func (b *Builder) SetDouble(key string, v float64) error {
	if err := b.v.validateWrite(key, kindDouble, false, v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetDoubles(key, v)
	return nil
}

func (b *Builder) SetString(key string, v string) error {
	if err := b.v.validateWrite(key, kindString, false, v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetStrings(key, v)
	return nil
}

// SetInt stores v widened to int64.
func (b *Builder) SetInt(key string, v int32) error {
	if err := b.v.validateWrite(key, kindInt, false, v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetLongs(key, int64(v))
	return nil
}

// SetFloat stores v widened to float64.
func (b *Builder) SetFloat(key string, v float32) error {
	if err := b.v.validateWrite(key, kindFloat, false, v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetDoubles(key, float64(v))
	return nil
}

func (b *Builder) SetBytes(key string, v []byte) error {
	if err := b.v.validateWrite(key, kindBytes, false, v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetBytes(key, v)
	return nil
}

// Array setters store a copy of vals. A nil slice is stored as an empty
// array, which reads back as empty rather than unset.

func (b *Builder) SetBooleanArray(key string, vals []bool) error {
	if err := b.v.validateWrite(key, kindBoolean, true, vals); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetBooleans(key, vals...)
	return nil
}

func (b *Builder) SetLongArray(key string, vals []int64) error {
	if err := b.v.validateWrite(key, kindLong, true, vals); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetLongs(key, vals...)
	return nil
}

func (b *Builder) SetDoubleArray(key string, vals []float64) error {
	if err := b.v.validateWrite(key, kindDouble, true, vals); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetDoubles(key, vals...)
	return nil
}

func (b *Builder) SetFloatArray(key string, vals []float32) error {
	if err := b.v.validateWrite(key, kindFloat, true, vals); err != nil {
		return err
	}
	wide := make([]float64, len(vals))
	for i, v := range vals {
		wide[i] = float64(v)
	}
	b.clearExtras(key)
	b.doc.SetDoubles(key, wide...)
	return nil
}

func (b *Builder) SetIntArray(key string, vals []int32) error {
	if err := b.v.validateWrite(key, kindInt, true, vals); err != nil {
		return err
	}
	wide := make([]int64, len(vals))
	for i, v := range vals {
		wide[i] = int64(v)
	}
	b.clearExtras(key)
	b.doc.SetLongs(key, wide...)
	return nil
}

func (b *Builder) SetStringList(key string, vals []string) error {
	if err := b.v.validateWrite(key, kindString, true, vals); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetStrings(key, vals...)
	return nil
}

func (b *Builder) SetBytesList(key string, vals [][]byte) error {
	if err := b.v.validateWrite(key, kindBytes, true, vals); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetBytes(key, vals...)
	return nil
}

// SetData nests child at key. The child's spec must equal the spec declared
// for key, and the child's side-bag entries move with it.
func (b *Builder) SetData(key string, child *Data) error {
	if child == nil {
		return invalidArgf(key, "nested value is nil")
	}
	if err := b.v.validateWrite(key, kindData, false, nil); err != nil {
		return err
	}
	if err := b.v.checkNested(key, child.v); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.SetDocuments(key, child.doc)
	b.extras.Put(extrasKey(key), child.extras)
	return nil
}

// SetDataList nests children at key. Each child's side-bag entries are kept
// under its own index.
func (b *Builder) SetDataList(key string, children []*Data) error {
	if err := b.v.validateWrite(key, kindData, true, nil); err != nil {
		return err
	}
	docs := make([]*document.Document, len(children))
	for i, child := range children {
		if child == nil {
			return invalidArgf(key, "nested value %d is nil", i)
		}
		if err := b.v.checkNested(key, child.v); err != nil {
			return err
		}
		docs[i] = child.doc
	}
	b.clearExtras(key)
	b.doc.SetDocuments(key, docs...)
	for i, child := range children {
		b.extras.Put(extrasIndexKey(key, i), child.extras)
	}
	return nil
}

// SetPendingIntent stores h in the side bag.
func (b *Builder) SetPendingIntent(key string, h PlatformHandle) error {
	if h == nil {
		return invalidArgf(key, "platform handle is nil")
	}
	if err := b.v.validateWrite(key, kindPendingIntent, false, nil); err != nil {
		return err
	}
	b.clearExtras(key)
	b.doc.Remove(key)
	b.extras.Put(extrasKey(key), h)
	return nil
}

// SetPendingIntentList stores hs in the side bag.
func (b *Builder) SetPendingIntentList(key string, hs []PlatformHandle) error {
	if err := b.v.validateWrite(key, kindPendingIntent, true, nil); err != nil {
		return err
	}
	for i, h := range hs {
		if h == nil {
			return invalidArgf(key, "platform handle %d is nil", i)
		}
	}
	b.clearExtras(key)
	b.doc.Remove(key)
	b.extras.Put(extrasKey(key), append([]PlatformHandle{}, hs...))
	return nil
}
