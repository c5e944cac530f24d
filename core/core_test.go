package core

import (
	"encoding/json"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}

func TestOperations_JSON_Unmarshalling(t *testing.T) {

	type Object struct {
		Operations []Operation `json:"operations"`
	}
	var object Object
	jsonRead := `{"operations":["create","read","update","replace","delete","list"]}`
	err := json.Unmarshal([]byte(jsonRead), &object)
	if err != nil {
		t.Fatal(err)
	}
	if len(object.Operations) != 6 {
		t.Fatal("unexpected number of operations:", len(object.Operations))
	}

	jsonRead = `{"operations":["invalid"]}`
	err = json.Unmarshal([]byte(jsonRead), &object)
	if err == nil {
		t.Fatal("invalid operation accepted")
	}

}

func TestPlural(t *testing.T) {
	cases := map[string]string{
		"note":     "notes",
		"category": "categories",
		"child":    "children",
		"news":     "news",
	}
	for singular, plural := range cases {
		if p := Plural(singular); p != plural {
			t.Fatalf("plural of %s: got %s want %s", singular, p, plural)
		}
	}
}
