package appfunctiondata

import "github.com/ggoodman/appfunctions-go/internal/document"

// VisitURIGrants walks d depth first and calls visit for every URI grant it
// holds, including d itself.
func (d *Data) VisitURIGrants(visit func(URIGrant)) {
	if d.QualifiedName() == URIGrantQualifiedName {
		if g, err := (uriGrantFactory{}).FromData(d); err == nil {
			visit(g)
		}
	}
	for _, key := range d.Keys() {
		for _, child := range d.children(key) {
			child.VisitURIGrants(visit)
		}
	}
}

// children returns the containers nested at key, nil when key holds none.
// Legacy containers accept both reads for any key, so a single child is
// recognised by its side-bag entry: SetData files the child's extras under
// the bare key, SetDataList under indexed keys. A child without extras reads
// the same either way.
func (d *Data) children(key string) []*Data {
	if v, ok := d.extras.Get(extrasKey(key)); ok {
		if _, single := v.(*document.Extras); single {
			if child, err := d.GetData(key); err == nil && child != nil {
				return []*Data{child}
			}
			return nil
		}
	}
	if list, err := d.GetDataList(key); err == nil {
		return list
	}
	if child, err := d.GetData(key); err == nil && child != nil {
		return []*Data{child}
	}
	return nil
}
