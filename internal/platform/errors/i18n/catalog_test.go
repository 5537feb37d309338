package i18n

import "testing"

func TestGetCatalogFallsBackToBaseLocale(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	for _, locale := range []string{"", "  ", "missing-locale"} {
		if got := GetCatalog(locale); got != base {
			t.Fatalf("GetCatalog(%q) = %q, want base catalog", locale, got.Locale())
		}
	}
}

func TestFormat(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"greet":   "hello {{.Name}}",
		"broken":  "{{ if .Name }}",
		"badcall": "{{ call .Name }}",
	})

	tests := []struct {
		name     string
		code     Code
		metadata map[string]string
		want     string
	}{
		{name: "renders metadata", code: "greet", metadata: map[string]string{"Name": "alice"}, want: "hello alice"},
		{name: "missing metadata", code: "greet", want: "hello <no value>"},
		{name: "unknown code", code: "unknown", want: "unknown"},
		{name: "parse error", code: "broken", metadata: map[string]string{"Name": "X"}, want: "{{ if .Name }}"},
		{name: "execution error", code: "badcall", metadata: map[string]string{"Name": "X"}, want: "{{ call .Name }}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cat.Format(tt.code, tt.metadata); got != tt.want {
				t.Fatalf("Format(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
	if !cat.Has("broken") || cat.Has("unknown") {
		t.Fatal("Has does not reflect catalog contents")
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("custom", map[Code]string{"code": "ok"})
	RegisterCatalog("custom", custom)
	if got := GetCatalog("custom"); got != custom {
		t.Fatal("expected registered catalog")
	}
}

func TestEscrowMessages(t *testing.T) {
	tests := []struct {
		locale     string
		wantLocale string
		code       Code
		metadata   map[string]string
		want       string
	}{
		{locale: "pt", wantLocale: "pt-BR", code: "CAMPAIGN_NOT_FOUND", metadata: map[string]string{"CampaignID": "c1"}, want: "Campanha c1 não encontrada"},
		{locale: "en-US", wantLocale: "en-US", code: "CAMPAIGN_NOT_FOUND", metadata: map[string]string{"CampaignID": "c1"}, want: "Campaign c1 was not found"},
		{locale: "en-US", wantLocale: "en-US", code: "NO_DONATION_ON_RECORD", metadata: map[string]string{"Donor": "alice"}, want: "No donation on record for alice"},
	}
	for _, tt := range tests {
		t.Run(tt.locale+"/"+tt.code, func(t *testing.T) {
			cat := GetCatalog(tt.locale)
			if cat.Locale() != tt.wantLocale {
				t.Fatalf("locale = %q, want %q", cat.Locale(), tt.wantLocale)
			}
			if got := cat.Format(tt.code, tt.metadata); got != tt.want {
				t.Fatalf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}
