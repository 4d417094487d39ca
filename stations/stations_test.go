package stations

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirectory_Lookup(t *testing.T) {
	d := Default()

	s, ok := d.Lookup("BTN")
	if !ok {
		t.Fatal("Lookup(BTN) should find Brighton")
	}
	if s.Name != "Brighton" {
		t.Errorf("Name = %q, want Brighton", s.Name)
	}

	if _, ok := d.Lookup("ZZZ"); ok {
		t.Error("Lookup(ZZZ) should miss")
	}

	// Case and whitespace tolerant.
	if _, ok := d.Lookup(" btn "); !ok {
		t.Error("Lookup should normalize the code")
	}
}

func TestDirectory_NameFallback(t *testing.T) {
	d := Default()

	if got := d.Name("VIC"); got != "London Victoria" {
		t.Errorf("Name(VIC) = %q, want London Victoria", got)
	}
	if got := d.Name("xqj"); got != "XQJ" {
		t.Errorf("Name(xqj) = %q, want the code itself", got)
	}
}

func TestDirectory_DuplicateCodesIgnored(t *testing.T) {
	d := NewDirectory([]Station{
		{CRS: "AAA", Name: "First"},
		{CRS: "aaa", Name: "Second"},
	})
	if d.Len() != 1 {
		t.Fatalf("Len = %d, want 1", d.Len())
	}
	if got := d.Name("AAA"); got != "First" {
		t.Errorf("Name(AAA) = %q, want First", got)
	}
}

func TestSearch_CodePrefix(t *testing.T) {
	d := Default()

	matches := d.Search("EUS", 5)
	if len(matches) == 0 {
		t.Fatal("Search(EUS) should match")
	}
	if matches[0].CRS != "EUS" || matches[0].MatchType != MatchCode {
		t.Errorf("first match = %+v, want EUS as a code match", matches[0])
	}
	if matches[0].Display != "London Euston (EUS)" {
		t.Errorf("Display = %q", matches[0].Display)
	}
}

func TestSearch_ExactCodeFirst(t *testing.T) {
	d := NewDirectory([]Station{
		{CRS: "BR", Name: "Zed Halt"},
		{CRS: "BRI", Name: "Bristol Temple Meads"},
		{CRS: "BRV", Name: "Another Halt"},
	})
	matches := d.Search("BRI", 5)
	if len(matches) == 0 || matches[0].CRS != "BRI" {
		t.Fatalf("matches = %+v, want exact code BRI first", matches)
	}
}

func TestSearch_NamePrefix(t *testing.T) {
	d := Default()

	matches := d.Search("Bright", 5)
	if len(matches) != 1 {
		t.Fatalf("Search(Bright) = %+v, want Brighton only", matches)
	}
	if matches[0].CRS != "BTN" || matches[0].MatchType != MatchName {
		t.Errorf("match = %+v, want BTN as a name match", matches[0])
	}
}

func TestSearch_Ranking(t *testing.T) {
	d := Default()

	matches := d.Search("London", 20)
	if len(matches) < 2 {
		t.Fatalf("Search(London) = %+v, want the London termini", matches)
	}
	sawName := false
	for _, m := range matches {
		switch m.MatchType {
		case MatchName:
			sawName = true
		case MatchCode:
			if sawName {
				t.Errorf("code match %+v ranked after name matches", m)
			}
		}
	}
}

func TestSearch_PartialMatch(t *testing.T) {
	d := Default()

	matches := d.Search("Airport", 5)
	found := false
	for _, m := range matches {
		if m.CRS == "GTW" && m.MatchType == MatchPartial {
			found = true
		}
	}
	if !found {
		t.Errorf("Search(Airport) = %+v, want Gatwick Airport as a partial match", matches)
	}
}

func TestSearch_CodeQuerySuppressesPartial(t *testing.T) {
	d := Default()

	// "RID" is three letters, so partial name hits like "Bridge" stay out.
	for _, m := range d.Search("RID", 20) {
		if m.MatchType == MatchPartial {
			t.Errorf("three-letter query returned partial match %+v", m)
		}
	}
}

func TestSearch_LimitAndEmpty(t *testing.T) {
	d := Default()

	if got := d.Search("", 5); got != nil {
		t.Errorf("Search(empty) = %+v, want nil", got)
	}
	if got := d.Search("  ", 5); got != nil {
		t.Errorf("Search(blank) = %+v, want nil", got)
	}
	if got := d.Search("L", 3); len(got) > 3 {
		t.Errorf("Search returned %d matches, want at most 3", len(got))
	}
}

func TestLoadDirectory_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.json")
	payload := `{"BTN": "Brighton", "VIC": "London Victoria"}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory error = %v", err)
	}
	if d.Len() != 2 {
		t.Errorf("Len = %d, want 2", d.Len())
	}
	if got := d.Name("VIC"); got != "London Victoria" {
		t.Errorf("Name(VIC) = %q", got)
	}
}

func TestLoadDirectory_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station_codes.csv")
	payload := "Brighton,BTN,London Victoria,VIC,Hove,HOV,Lewes,LWS\n" +
		"Gatwick Airport,GTW,,,\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory error = %v", err)
	}
	if d.Len() != 5 {
		t.Errorf("Len = %d, want 5", d.Len())
	}
	if got := d.Name("GTW"); got != "Gatwick Airport" {
		t.Errorf("Name(GTW) = %q", got)
	}
}

func TestLoadDirectory_MissingFile(t *testing.T) {
	if _, err := LoadDirectory(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("LoadDirectory should fail on a missing file")
	}
}
