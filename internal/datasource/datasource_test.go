package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/tourscope/internal/reconcile"
)

type fakeFetcher struct {
	responses map[string][]byte
	errs      map[string]error
	calls     int
}

func (f *fakeFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	f.calls++
	if err, ok := f.errs[location]; ok {
		return nil, err
	}
	return f.responses[location], nil
}

func TestNew_BusinessWinsOverSheets(t *testing.T) {
	l := New(Config{UseBusinessData: true, UseGoogleSheets: true}, &fakeFetcher{})
	assert.False(t, l.cfg.UseGoogleSheets)
}

func TestLoadBusiness_DisabledReturnsNil(t *testing.T) {
	l := New(Config{UseBusinessData: false}, &fakeFetcher{})
	records, err := l.LoadBusiness(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestLoadBusiness_ParsesJSON(t *testing.T) {
	payload := `[{"id":"room-1","name":"Lobby","matchTags":["entrance"]}]`
	f := &fakeFetcher{responses: map[string][]byte{"business.json": []byte(payload)}}
	l := New(Config{UseBusinessData: true, BusinessDataURL: "business.json"}, f)

	records, err := l.LoadBusiness(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "room-1", records[0].ID)
	assert.Equal(t, []string{"entrance"}, records[0].MatchTags)
}

func TestLoadBusiness_FetchFailureWrapsError(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{"business.json": errors.New("boom")}}
	l := New(Config{UseBusinessData: true, BusinessDataURL: "business.json"}, f)

	_, err := l.LoadBusiness(context.Background())
	assert.Error(t, err)
}

func TestLoadSheets_DisabledReturnsNil(t *testing.T) {
	l := New(Config{UseGoogleSheets: false}, &fakeFetcher{})
	records, err := l.LoadSheets(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestLoadSheets_ParsesCSV(t *testing.T) {
	csv := "id,tag,name,description,imageUrl,elementType,parentId\nr1,welcome,Lobby,,,,"
	f := &fakeFetcher{responses: map[string][]byte{"sheet.csv": []byte(csv)}}
	l := New(Config{UseGoogleSheets: true, SheetsSource: "sheet.csv"}, f)

	records, err := l.LoadSheets(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Lobby", records[0].Name)
}

func TestLoadSheets_CachesOnlineSourceWithinTTL(t *testing.T) {
	csv := "id,tag,name,description,imageUrl,elementType,parentId\nr1,welcome,Lobby,,,,"
	f := &fakeFetcher{responses: map[string][]byte{
		"https://example.com/sheet.csv": []byte(csv),
	}}
	l := New(Config{
		UseGoogleSheets: true,
		SheetsSource:    "https://example.com/sheet.csv",
		CacheTTL:        time.Minute,
	}, f)

	_, err := l.LoadSheets(context.Background())
	require.NoError(t, err)
	_, err = l.LoadSheets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls, "second call within TTL should be served from cache")
}

func TestLoadSheets_LocalSourceBypassesCache(t *testing.T) {
	csv := "id,tag,name,description,imageUrl,elementType,parentId\nr1,welcome,Lobby,,,,"
	f := &fakeFetcher{responses: map[string][]byte{"local.csv": []byte(csv)}}
	l := New(Config{UseGoogleSheets: true, SheetsSource: "local.csv"}, f)

	_, err := l.LoadSheets(context.Background())
	require.NoError(t, err)
	_, err = l.LoadSheets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.calls, "local file sources are not cached")
}

func TestResolveSheetsURL_ConvertsShareLinkToExport(t *testing.T) {
	got := resolveSheetsURL("https://docs.google.com/spreadsheets/d/abc123/edit#gid=0", "", "")
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc123/export?format=csv", got)
}

func TestResolveSheetsURL_AppendsAPIKey(t *testing.T) {
	got := resolveSheetsURL("https://example.com/sheet.csv", "key", "secret")
	assert.Equal(t, "https://example.com/sheet.csv?key=secret", got)
}

func TestResolveSheetsURL_LeavesAlreadyExportedURLsUntouched(t *testing.T) {
	got := resolveSheetsURL("https://docs.google.com/spreadsheets/d/abc123/export?format=csv", "", "")
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc123/export?format=csv", got)
}

func TestLightweight_KeepsOnlyIDTagName(t *testing.T) {
	full := []reconcile.SheetsRecord{
		{ID: "r1", Tag: "welcome", Name: "Lobby", Description: "big room", ImageURL: "lobby.png", ElementType: "Video", ParentID: "p1"},
	}

	light := Lightweight(full)

	require.Len(t, light, 1)
	assert.Equal(t, "r1", light[0].ID)
	assert.Equal(t, "welcome", light[0].Tag)
	assert.Equal(t, "Lobby", light[0].Name)
	assert.Empty(t, light[0].Description)
	assert.Empty(t, light[0].ImageURL)
	assert.Empty(t, light[0].ElementType)
	assert.Empty(t, light[0].ParentID)
}

func TestLightweight_EmptyInputReturnsEmptySlice(t *testing.T) {
	light := Lightweight(nil)
	assert.Empty(t, light)
}
