// Package proxy registers container factories for well-known standard
// library types that cannot carry their own: time.Time as a local date time
// and *url.URL as a URI.
package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ggoodman/appfunctions-go/appfunctiondata"
	"github.com/ggoodman/appfunctions-go/metadata"
)

// Qualified schema names of the proxied types.
const (
	LocalDateTimeQualifiedName = "androidx.appfunctions.internal.serializableproxies.AppFunctionLocalDateTime"
	URIQualifiedName           = "androidx.appfunctions.internal.serializableproxies.AppFunctionUri"
)

var localDateTimeFields = []string{"year", "month", "dayOfMonth", "hour", "minute", "second", "nanoOfSecond"}

var localDateTimeType = func() *metadata.ObjectType {
	obj := &metadata.ObjectType{QualifiedName: LocalDateTimeQualifiedName}
	for _, f := range localDateTimeFields {
		obj.Properties = append(obj.Properties, metadata.Property{Name: f, Type: metadata.Int()})
		obj.Required = append(obj.Required, f)
	}
	return obj
}()

var uriType = &metadata.ObjectType{
	QualifiedName: URIQualifiedName,
	Properties:    []metadata.Property{{Name: "uriString", Type: metadata.String()}},
	Required:      []string{"uriString"},
}

// LocalDateTimeType returns the object descriptor used for time.Time.
func LocalDateTimeType() *metadata.ObjectType { return localDateTimeType }

// URIType returns the object descriptor used for *url.URL.
func URIType() *metadata.ObjectType { return uriType }

// Components returns a table holding both proxy descriptors, suitable for
// merging into a function's components.
func Components() metadata.Components {
	return metadata.Components{DataTypes: map[string]metadata.DataType{
		LocalDateTimeQualifiedName: localDateTimeType,
		URIQualifiedName:           uriType,
	}}
}

// Register installs the proxy factories into r.
func Register(r *appfunctiondata.Registry) error {
	return errors.Join(
		appfunctiondata.Register[time.Time](r, LocalDateTimeQualifiedName, localDateTimeFactory{}),
		appfunctiondata.Register[*url.URL](r, URIQualifiedName, uriFactory{}),
	)
}

// localDateTimeFactory maps time.Time to its wall clock fields. The location
// is not carried; decoded values are in time.Local.
type localDateTimeFactory struct{}

func (localDateTimeFactory) ToData(t time.Time) (*appfunctiondata.Data, error) {
	b := appfunctiondata.NewBuilder(localDateTimeType, metadata.Components{})
	vals := []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()}
	for i, f := range localDateTimeFields {
		if err := b.SetInt(f, int32(vals[i])); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func (localDateTimeFactory) FromData(d *appfunctiondata.Data) (time.Time, error) {
	var vals [7]int
	for i, f := range localDateTimeFields {
		v, err := d.GetInt(f)
		if err != nil {
			return time.Time{}, err
		}
		vals[i] = int(v)
	}
	if vals[1] < 1 || vals[1] > 12 {
		return time.Time{}, fmt.Errorf("proxy: month %d out of range", vals[1])
	}
	return time.Date(vals[0], time.Month(vals[1]), vals[2], vals[3], vals[4], vals[5], vals[6], time.Local), nil
}

type uriFactory struct{}

func (uriFactory) ToData(u *url.URL) (*appfunctiondata.Data, error) {
	if u == nil {
		return nil, errors.New("proxy: nil URL")
	}
	b := appfunctiondata.NewBuilder(uriType, metadata.Components{})
	if err := b.SetString("uriString", u.String()); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func (uriFactory) FromData(d *appfunctiondata.Data) (*url.URL, error) {
	s, err := d.GetString("uriString")
	if err != nil {
		return nil, err
	}
	return url.Parse(s)
}
