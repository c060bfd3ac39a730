package selector

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiscout/pkg/core"
)

func TestSelector_UnmarshalScalar(t *testing.T) {
	var s Selector
	if err := yaml.Unmarshal([]byte(`"Login"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got, ok := s.Resolve(KeyText, core.LanguageEnglish)
	if !ok || got != "Login" {
		t.Errorf("scalar selector should set text, got %q ok=%v", got, ok)
	}
}

func TestSelector_UnmarshalMapping(t *testing.T) {
	data := []byte(`
id: login_button
class_name: android.widget.Button
text:
  english: Login
  japanese: ログイン
`)
	var s Selector
	if err := yaml.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	tests := []struct {
		name string
		key  Key
		lang core.Language
		want string
		ok   bool
	}{
		{"id any language", KeyID, core.LanguageGerman, "login_button", true},
		{"class any language", KeyClassName, core.LanguageKorean, "android.widget.Button", true},
		{"text english", KeyText, core.LanguageEnglish, "Login", true},
		{"text japanese", KeyText, core.LanguageJapanese, "ログイン", true},
		{"text missing translation", KeyText, core.LanguageFrench, "", false},
		{"absent key", KeyDescription, core.LanguageEnglish, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Resolve(tt.key, tt.lang)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve(%s, %s) = %q, %v; want %q, %v", tt.key, tt.lang, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSelector_UnmarshalRejectsUnknownLanguage(t *testing.T) {
	data := []byte(`
text:
  english: Login
  pirate: Arr
`)
	var s Selector
	if err := yaml.Unmarshal(data, &s); err == nil {
		t.Error("unmarshal should reject unknown language tags")
	}
}

func TestSelector_UnmarshalImage(t *testing.T) {
	tests := []struct {
		name string
		data string
		lang core.Language
		want ImageRef
		ok   bool
	}{
		{
			name: "path scalar",
			data: `image: icons/login.png`,
			lang: core.LanguageEnglish,
			want: ImageRef{Path: "icons/login.png", Threshold: 0.9},
			ok:   true,
		},
		{
			name: "path with threshold",
			data: "image:\n  path: icons/login.png\n  threshold: 0.85",
			lang: core.LanguageEnglish,
			want: ImageRef{Path: "icons/login.png", Threshold: 0.85},
			ok:   true,
		},
		{
			name: "per language",
			data: "image:\n  english: icons/login_en.png\n  japanese:\n    path: icons/login_ja.png\n    threshold: 0.8",
			lang: core.LanguageJapanese,
			want: ImageRef{Path: "icons/login_ja.png", Threshold: 0.8},
			ok:   true,
		},
		{
			name: "per language missing translation",
			data: "image:\n  english: icons/login_en.png",
			lang: core.LanguageKorean,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Selector
			if err := yaml.Unmarshal([]byte(tt.data), &s); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, ok := s.ResolveImage(tt.lang)
			if ok != tt.ok {
				t.Fatalf("ResolveImage ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ResolveImage = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSelector_TargetWindow(t *testing.T) {
	var s Selector
	if got := s.TargetWindow(); got != core.DefaultWindow() {
		t.Errorf("TargetWindow() = %+v, want default", got)
	}

	data := []byte("text: Login\nwindow:\n  name: hud\n  display_id: 2")
	if err := yaml.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := s.TargetWindow(); got.Name != "hud" || got.DisplayID != 2 {
		t.Errorf("TargetWindow() = %+v, want {hud 2}", got)
	}
}

func TestSelector_IsEmpty(t *testing.T) {
	var empty Selector
	if !empty.IsEmpty() {
		t.Error("zero selector should be empty")
	}

	withText := Selector{Text: String("Login")}
	if withText.IsEmpty() {
		t.Error("selector with text should not be empty")
	}

	withImage := Selector{Image: ImagePath("icons/login.png")}
	if withImage.IsEmpty() {
		t.Error("selector with image should not be empty")
	}
}

func TestSelector_Describe(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		want string
	}{
		{
			name: "id wins over text",
			sel:  Selector{ID: String("btn"), Text: String("Login")},
			want: `id="btn"`,
		},
		{
			name: "translated text",
			sel:  Selector{Text: Translations(map[core.Language]string{core.LanguageEnglish: "Login"})},
			want: `text="Login"`,
		},
		{
			name: "image only",
			sel:  Selector{Image: ImagePath("icons/login.png")},
			want: `image="icons/login.png"`,
		},
		{
			name: "empty",
			sel:  Selector{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.Describe(core.LanguageEnglish); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPriorityOrder(t *testing.T) {
	order := PriorityOrder(KeyXPath)

	if order[0] != KeyID {
		t.Errorf("first priority key = %s, want id", order[0])
	}
	if order[3] != KeyXPath {
		t.Errorf("raw slot = %s, want xpath", order[3])
	}
	if order[len(order)-1] != KeyImage {
		t.Errorf("last priority key = %s, want image", order[len(order)-1])
	}

	jsonOrder := PriorityOrder(KeyJSONPath)
	if jsonOrder[3] != KeyJSONPath {
		t.Errorf("raw slot = %s, want jsonpath", jsonOrder[3])
	}

	for _, k := range order {
		if !Known(k) {
			t.Errorf("priority key %s is not a known key", k)
		}
	}
}

func TestKnown(t *testing.T) {
	if !Known(KeyTextEndsWith) {
		t.Error("text_ends_with should be known")
	}
	if Known(Key("color")) {
		t.Error("color should not be known")
	}
}

func TestEndsWithVariant(t *testing.T) {
	if !EndsWithVariant(KeyTextEndsWith) || !EndsWithVariant(KeyDescriptionEndsWith) {
		t.Error("ends-with keys should be suffix variants")
	}
	if EndsWithVariant(KeyTextContains) {
		t.Error("contains is not a suffix variant")
	}
}
