package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/language"
)

func TestResolveTagDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	tag, persist := ResolveTag(req)
	if tag != language.English {
		t.Fatalf("tag = %v, want English", tag)
	}
	if persist {
		t.Fatal("expected no persistence for default")
	}
}

func TestResolveTagQueryParamPersists(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?lang=pt-BR", nil)
	tag, persist := ResolveTag(req)
	if tag.String() != "pt-BR" {
		t.Fatalf("tag = %v, want pt-BR", tag)
	}
	if !persist {
		t.Fatal("expected query-selected language to persist")
	}
}

func TestResolveTagUnsupportedQueryFallsThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?lang=zz", nil)
	tag, persist := ResolveTag(req)
	if tag != language.English {
		t.Fatalf("tag = %v, want English", tag)
	}
	if persist {
		t.Fatal("expected no persistence for unsupported language")
	}
}

func TestResolveTagCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: LangCookieName, Value: "pt-BR"})
	tag, persist := ResolveTag(req)
	if tag.String() != "pt-BR" {
		t.Fatalf("tag = %v, want pt-BR", tag)
	}
	if persist {
		t.Fatal("expected cookie language not to re-persist")
	}
}

func TestResolveTagAcceptLanguage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")
	tag, _ := ResolveTag(req)
	if tag.String() != "pt-BR" {
		t.Fatalf("tag = %v, want pt-BR", tag)
	}
}

func TestSetLanguageCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetLanguageCookie(w, language.MustParse("pt-BR"))
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if cookies[0].Name != LangCookieName || cookies[0].Value != "pt-BR" {
		t.Fatalf("cookie = %s=%s", cookies[0].Name, cookies[0].Value)
	}
}
