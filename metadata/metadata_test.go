package metadata

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func noteObject() *ObjectType {
	return &ObjectType{
		QualifiedName: "com.example.Note",
		Properties: []Property{
			{Name: "title", Type: String()},
			{Name: "priority", Type: &IntType{EnumValues: []int32{1, 2, 3}}},
			{Name: "attachment", Type: Ref("com.example.Attachment")},
		},
		Required: []string{"title"},
	}
}

func attachmentObject() *ObjectType {
	return &ObjectType{
		QualifiedName: "com.example.Attachment",
		Properties:    []Property{{Name: "uri", Type: String()}},
		Required:      []string{"uri"},
	}
}

func TestEqualIgnoresDescriptions(t *testing.T) {
	a := noteObject()
	b := noteObject()
	b.Description = "a note"
	b.Properties[0].Type = &StringType{Description: "the title"}
	if !Equal(a, b) {
		t.Fatalf("expected descriptors to be equal")
	}
}

func TestEqualDetectsDifferences(t *testing.T) {
	cases := map[string]func(o *ObjectType){
		"nullable":       func(o *ObjectType) { o.Nullable = true },
		"qualified name": func(o *ObjectType) { o.QualifiedName = "other" },
		"enum":           func(o *ObjectType) { o.Properties[1].Type = &IntType{EnumValues: []int32{1, 2}} },
		"kind":           func(o *ObjectType) { o.Properties[0].Type = Long() },
		"order":          func(o *ObjectType) { o.Properties[0], o.Properties[1] = o.Properties[1], o.Properties[0] },
		"required":       func(o *ObjectType) { o.Required = []string{"priority"} },
		"ref":            func(o *ObjectType) { o.Properties[2].Type = Ref("x") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := noteObject()
			mutate(b)
			if Equal(noteObject(), b) {
				t.Fatalf("expected descriptors to differ")
			}
		})
	}
}

func TestRequiredIsASet(t *testing.T) {
	a := noteObject()
	a.Required = []string{"title", "priority"}
	b := noteObject()
	b.Required = []string{"priority", "title"}
	if !Equal(a, b) {
		t.Fatalf("required order should not matter")
	}
}

func TestDereference(t *testing.T) {
	c := Components{DataTypes: map[string]DataType{
		"com.example.Attachment": attachmentObject(),
		"alias":                  Ref("com.example.Attachment"),
	}}
	dt, err := c.Dereference(Ref("alias"))
	if err != nil {
		t.Fatalf("dereference: %v", err)
	}
	if obj, ok := dt.(*ObjectType); !ok || obj.QualifiedName != "com.example.Attachment" {
		t.Fatalf("unexpected target %v", dt)
	}
	if _, err := c.Dereference(Ref("missing")); !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected ErrUnresolvedReference, got %v", err)
	}

	cyclic := Components{DataTypes: map[string]DataType{"a": Ref("b"), "b": Ref("a")}}
	if _, err := cyclic.Dereference(Ref("a")); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestAllOfPseudoObject(t *testing.T) {
	c := Components{DataTypes: map[string]DataType{"com.example.Attachment": attachmentObject()}}
	base := &ObjectType{
		Properties: []Property{{Name: "id", Type: String()}, {Name: "uri", Type: Long()}},
		Required:   []string{"id"},
	}
	all := &AllOfType{
		QualifiedName: "com.example.Document",
		MatchAll:      []DataType{base, Ref("com.example.Attachment")},
	}
	obj, err := all.PseudoObject(c)
	if err != nil {
		t.Fatalf("pseudo object: %v", err)
	}
	if obj.QualifiedName != "com.example.Document" {
		t.Fatalf("qualified name = %q", obj.QualifiedName)
	}
	if len(obj.Properties) != 2 || obj.Properties[0].Name != "id" || obj.Properties[1].Name != "uri" {
		t.Fatalf("unexpected properties %+v", obj.Properties)
	}
	if obj.Properties[1].Type.Kind() != KindString {
		t.Fatalf("later member should replace uri, got %v", obj.Properties[1].Type)
	}
	if !obj.IsRequired("id") || !obj.IsRequired("uri") {
		t.Fatalf("required should be unioned, got %v", obj.Required)
	}

	bad := &AllOfType{MatchAll: []DataType{Long()}}
	if _, err := bad.PseudoObject(c); err == nil {
		t.Fatalf("expected error for non-object member")
	}
}

func testFunction() FunctionMetadata {
	return FunctionMetadata{
		ID:               "com.example.notes#createNote",
		PackageName:      "com.example.notes",
		Description:      "Creates a note",
		EnabledByDefault: true,
		Schema:           &SchemaMetadata{Category: "notes", Name: "createNote", Version: 1},
		Parameters: []ParameterMetadata{
			{Name: "note", IsRequired: true, DataType: noteObject()},
			{Name: "tags", DataType: ArrayOf(String())},
		},
		Response: ResponseMetadata{ValueType: Ref("com.example.Attachment")},
		Components: Components{DataTypes: map[string]DataType{
			"com.example.Attachment": attachmentObject(),
		}},
	}
}

func TestFunctionMetadataJSONRoundTrip(t *testing.T) {
	f := testFunction()
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got FunctionMetadata
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != f.ID || got.PackageName != f.PackageName || !got.EnabledByDefault {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.Schema == nil || *got.Schema != *f.Schema {
		t.Fatalf("schema mismatch: %+v", got.Schema)
	}
	if len(got.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(got.Parameters))
	}
	for i := range f.Parameters {
		if !Equal(f.Parameters[i].DataType, got.Parameters[i].DataType) {
			t.Fatalf("parameter %d type mismatch: %v vs %v", i, f.Parameters[i].DataType, got.Parameters[i].DataType)
		}
	}
	if !Equal(f.Response.ValueType, got.Response.ValueType) {
		t.Fatalf("response mismatch")
	}
	if !f.Components.Equal(got.Components) {
		t.Fatalf("components mismatch")
	}
	// property order is part of the document
	if idx := strings.Index(string(b), `"title"`); idx < 0 || idx > strings.Index(string(b), `"priority"`) {
		t.Fatalf("property order not preserved: %s", b)
	}
}

func TestFunctionMetadataYAML(t *testing.T) {
	doc := `
id: com.example.notes#createNote
packageName: com.example.notes
enabledByDefault: false
parameters:
  - name: note
    required: true
    type:
      type: object
      qualifiedName: com.example.Note
      required: [title]
      properties:
        title:
          type: string
        priority:
          type: int
          enum: [1, 2, 3]
        attachment:
          type: reference
          $ref: com.example.Attachment
response:
  type:
    type: boolean
components:
  com.example.Attachment:
    type: object
    properties:
      uri:
        type: string
`
	var f FunctionMetadata
	if err := yaml.Unmarshal([]byte(doc), &f); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if f.EnabledByDefault {
		t.Fatalf("enabledByDefault should be false")
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	p, ok := f.Parameter("note")
	if !ok || !p.IsRequired {
		t.Fatalf("missing note parameter")
	}
	want := noteObject()
	if !Equal(p.DataType, want) {
		t.Fatalf("note type mismatch: %v", p.DataType)
	}

	out, err := yaml.Marshal(f)
	if err != nil {
		t.Fatalf("yaml marshal: %v", err)
	}
	var again FunctionMetadata
	if err := yaml.Unmarshal(out, &again); err != nil {
		t.Fatalf("yaml re-unmarshal: %v\n%s", err, out)
	}
	if !Equal(again.Parameters[0].DataType, want) {
		t.Fatalf("yaml round trip changed note type")
	}
}

func TestValidate(t *testing.T) {
	f := testFunction()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Parameters = append(f.Parameters, ParameterMetadata{Name: "tags", DataType: Long()})
	f.Components = Components{}
	err := f.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected unresolved reference in %v", err)
	}
	if !strings.Contains(err.Error(), "duplicate parameter tags") {
		t.Fatalf("expected duplicate parameter in %v", err)
	}
}

func TestResponseObject(t *testing.T) {
	f := testFunction()
	obj := f.ResponseObject()
	if _, ok := obj.Property(ReturnValueKey); !ok || !obj.IsRequired(ReturnValueKey) {
		t.Fatalf("unexpected response object %+v", obj)
	}
	f.Response = ResponseMetadata{}
	if len(f.ResponseObject().Properties) != 0 {
		t.Fatalf("unit response should have no properties")
	}
}

func TestDataTypeJSON(t *testing.T) {
	in := ArrayOf(&IntType{EnumValues: []int32{4, 5}, Nullable: true})
	b, err := MarshalDataType(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := UnmarshalDataType(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Equal(in, out) {
		t.Fatalf("round trip mismatch: %s", b)
	}
	if _, err := UnmarshalDataType([]byte(`{"type":"int","enum":[1.5]}`)); err == nil {
		t.Fatalf("expected non-integral enum to fail")
	}
	if _, err := UnmarshalDataType([]byte(`{"type":"widget"}`)); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
}

type reflectAttachment struct {
	URI string `json:"uri" jsonschema:"description=Location of the attachment"`
}

type reflectNote struct {
	Title      string             `json:"title" jsonschema:"description=Note title"`
	Priority   int32              `json:"priority,omitempty" jsonschema:"enum=1,enum=2,enum=3"`
	Size       int64              `json:"size"`
	Ratio      float32            `json:"ratio"`
	Score      float64            `json:"score"`
	Pinned     bool               `json:"pinned"`
	Tags       []string           `json:"tags,omitempty"`
	Body       []byte             `json:"body,omitempty"`
	Attachment *reflectAttachment `json:"attachment,omitempty"`
	internal   string
}

func TestReflectObject(t *testing.T) {
	obj, err := ReflectObject[reflectNote]()
	if err != nil {
		t.Fatalf("reflect: %v", err)
	}
	if !strings.HasSuffix(obj.QualifiedName, "/metadata.reflectNote") {
		t.Fatalf("qualified name = %q", obj.QualifiedName)
	}
	wantKinds := []struct {
		name string
		kind Kind
	}{
		{"title", KindString},
		{"priority", KindInt},
		{"size", KindLong},
		{"ratio", KindFloat},
		{"score", KindDouble},
		{"pinned", KindBoolean},
		{"tags", KindArray},
		{"body", KindBytes},
		{"attachment", KindObject},
	}
	if len(obj.Properties) != len(wantKinds) {
		t.Fatalf("expected %d properties, got %+v", len(wantKinds), obj.Properties)
	}
	for i, w := range wantKinds {
		p := obj.Properties[i]
		if p.Name != w.name || p.Type.Kind() != w.kind {
			t.Fatalf("property %d = %s/%v, want %s/%v", i, p.Name, p.Type.Kind(), w.name, w.kind)
		}
	}
	prio := obj.Properties[1].Type.(*IntType)
	if len(prio.EnumValues) != 3 || !prio.Allows(2) || prio.Allows(4) {
		t.Fatalf("unexpected enum %v", prio.EnumValues)
	}
	if d := obj.Properties[0].Type.(*StringType).Description; d != "Note title" {
		t.Fatalf("description = %q", d)
	}
	att := obj.Properties[8].Type.(*ObjectType)
	if !att.Nullable || !att.IsRequired("uri") {
		t.Fatalf("unexpected attachment %+v", att)
	}
	for _, name := range []string{"title", "size", "ratio", "score", "pinned"} {
		if !obj.IsRequired(name) {
			t.Fatalf("%s should be required, got %v", name, obj.Required)
		}
	}
	for _, name := range []string{"priority", "tags", "attachment"} {
		if obj.IsRequired(name) {
			t.Fatalf("%s should be optional", name)
		}
	}

	again, err := ReflectObject[*reflectNote]()
	if err != nil || again != obj {
		t.Fatalf("expected cached descriptor")
	}
}

func TestReflectObjectRejectsMaps(t *testing.T) {
	type withMap struct {
		Labels map[string]string `json:"labels"`
	}
	if _, err := ReflectObject[withMap](); err == nil {
		t.Fatalf("expected error for map field")
	}
	if _, err := ReflectObject[int](); err == nil {
		t.Fatalf("expected error for non-struct")
	}
}
