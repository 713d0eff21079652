package filings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/adapters/edgar"
	"advisor/internal/tools"
	"advisor/pkg/errors"
)

type fakeSource struct {
	docs        map[string]string // form -> text
	listErr     error
	downloadErr map[string]error

	mu      sync.Mutex
	active  int
	overlap bool
}

func (f *fakeSource) LatestFilings(_ context.Context, ticker string, forms ...string) ([]edgar.Filing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []edgar.Filing
	for _, form := range forms {
		if _, ok := f.docs[form]; ok {
			out = append(out, edgar.Filing{Form: form, AccessionNumber: ticker + "-" + form})
		}
	}
	return out, nil
}

func (f *fakeSource) Download(_ context.Context, filing edgar.Filing, w io.Writer) error {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	time.Sleep(5 * time.Millisecond)
	if err := f.downloadErr[filing.Form]; err != nil {
		return err
	}
	_, err := io.WriteString(w, f.docs[filing.Form])
	return err
}

const tenK = `Item 1A. Risk Factors
The Company is subject to litigation in many jurisdictions. Litigation outcomes are uncertain.
Regulatory changes may increase costs. Pending LITIGATION could be material.
Geopolitical tensions affect supply chains.`

const eightK = `Item 8.01 Other Events
The Company settled a patent litigation matter.`

func newStore(t *testing.T, src *fakeSource) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	return NewStore(src, root), root
}

func exec(t *testing.T, tool tools.Tool, args interface{}) tools.Result {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return tool.Execute(context.Background(), raw)
}

func assertCleaned(t *testing.T, store *Store, ticker string) {
	t.Helper()
	dir, err := store.ScratchDir(ticker)
	require.NoError(t, err)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "scratch dir must be removed")
}

func TestRiskSearchTool_Found(t *testing.T) {
	store, _ := newStore(t, &fakeSource{docs: map[string]string{"10-K": tenK, "8-K": eightK}})

	res := exec(t, NewRiskSearchTool(store), map[string]string{"ticker": "aapl", "risk_keyword": "litigation"})
	require.False(t, res.IsError(), res.Text())

	assert.Contains(t, res.Payload, "SEC RISK DISCLOSURE FOUND for 'litigation' in AAPL filings")
	assert.Contains(t, res.Payload, "Filing Type: 10-K\nFile: AAPL-10-K.txt\nMentions Found: 3")
	assert.Contains(t, res.Payload, "Filing Type: 8-K")
	assert.Contains(t, res.Payload, "Context 2:")
	assert.NotContains(t, res.Payload, "Context 3:")
	assert.Contains(t, res.Payload, "indicating AAPL has acknowledged this as a material risk factor")
	assertCleaned(t, store, "AAPL")
}

func TestRiskSearchTool_NotFound(t *testing.T) {
	store, _ := newStore(t, &fakeSource{docs: map[string]string{"10-K": tenK}})

	res := exec(t, NewRiskSearchTool(store), map[string]string{"ticker": "AAPL", "risk_keyword": "antitrust"})
	require.False(t, res.IsError())
	assert.Contains(t, res.Payload, "No mentions of 'antitrust' found in the latest 10-K or 8-K filings.")
	assertCleaned(t, store, "AAPL")
}

func TestRiskSearchTool_NoFilings(t *testing.T) {
	store, _ := newStore(t, &fakeSource{listErr: errors.Wrap(errors.ErrNotFound, "ticker ZZZZ is not in the SEC index")})

	res := exec(t, NewRiskSearchTool(store), map[string]string{"ticker": "ZZZZ", "risk_keyword": "litigation"})
	assert.Equal(t, tools.KindNotFound, res.Kind)
	assert.True(t, strings.HasPrefix(res.Text(), "ERROR: No SEC filings could be downloaded for ticker ZZZZ"))
	assertCleaned(t, store, "ZZZZ")
}

func TestRiskSearchTool_RejectsPathTicker(t *testing.T) {
	parent := t.TempDir()
	victim := filepath.Join(parent, fmt.Sprintf("VICTIM_%d", os.Getpid()))
	require.NoError(t, os.Mkdir(victim, 0o755))

	src := &fakeSource{docs: map[string]string{"10-K": tenK}}
	store := NewStore(src, filepath.Join(parent, "scratch"))

	for _, ticker := range []string{"../victim", "..", "a/b", `a\b`, "TOOLONGTICKER1"} {
		res := exec(t, NewRiskSearchTool(store), map[string]string{"ticker": ticker, "risk_keyword": "litigation"})
		assert.Equal(t, tools.KindInvalidInput, res.Kind, ticker)

		res = exec(t, NewMultiRiskSearchTool(store), map[string]string{"ticker": ticker, "risk_keywords": "litigation"})
		assert.Equal(t, tools.KindInvalidInput, res.Kind, ticker)
	}

	_, err := os.Stat(victim)
	assert.NoError(t, err, "directories outside the scratch root are untouched")
}

func TestStore_ScratchDirStaysUnderRoot(t *testing.T) {
	parent := t.TempDir()
	victim := filepath.Join(parent, fmt.Sprintf("VICTIM_%d", os.Getpid()))
	require.NoError(t, os.Mkdir(victim, 0o755))

	store := NewStore(&fakeSource{docs: map[string]string{"10-K": tenK}}, filepath.Join(parent, "scratch"))

	called := false
	err := store.WithFilings(context.Background(), "../VICTIM", func([]Document) error {
		called = true
		return nil
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.False(t, called)

	_, err = os.Stat(victim)
	assert.NoError(t, err)

	dir, err := store.ScratchDir("BRK.B")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "scratch"), filepath.Dir(dir))
}

func TestRiskSearchTool_PartialDownload(t *testing.T) {
	src := &fakeSource{
		docs:        map[string]string{"10-K": tenK, "8-K": eightK},
		downloadErr: map[string]error{"10-K": errors.Wrap(errors.ErrUnavailable, "reset")},
	}
	store, _ := newStore(t, src)

	res := exec(t, NewRiskSearchTool(store), map[string]string{"ticker": "AAPL", "risk_keyword": "patent"})
	require.False(t, res.IsError(), res.Text())
	assert.Contains(t, res.Payload, "Filing Type: 8-K")
}

func TestRiskSearchTool_AllDownloadsFail(t *testing.T) {
	src := &fakeSource{
		docs:        map[string]string{"10-K": tenK},
		downloadErr: map[string]error{"10-K": errors.Wrap(errors.ErrUnavailable, "reset")},
	}
	store, _ := newStore(t, src)

	res := exec(t, NewRiskSearchTool(store), map[string]string{"ticker": "AAPL", "risk_keyword": "patent"})
	assert.Equal(t, tools.KindTransient, res.Kind)
	assertCleaned(t, store, "AAPL")
}

func TestRiskSearchTool_SameTickerSerialized(t *testing.T) {
	src := &fakeSource{docs: map[string]string{"10-K": tenK}}
	store, _ := newStore(t, src)
	tool := NewRiskSearchTool(store)

	var wg sync.WaitGroup
	results := make([]tools.Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = exec(t, tool, map[string]string{"ticker": "AAPL", "risk_keyword": "litigation"})
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.False(t, r.IsError(), r.Text())
	}
	assert.False(t, src.overlap)
}

func TestMultiRiskSearchTool(t *testing.T) {
	store, _ := newStore(t, &fakeSource{docs: map[string]string{"10-K": tenK, "8-K": eightK}})

	res := exec(t, NewMultiRiskSearchTool(store), map[string]string{"ticker": "AAPL", "risk_keywords": "litigation, regulatory ,antitrust"})
	require.False(t, res.IsError(), res.Text())

	assert.Contains(t, res.Payload, "- LITIGATION: 4 mentions - MODERATE")
	assert.Contains(t, res.Payload, "- REGULATORY: 1 mentions - LOW")
	assert.Contains(t, res.Payload, "- ANTITRUST: Not found")
	assert.Contains(t, res.Payload, "IDENTIFIED RISKS: litigation, regulatory")
	assert.Contains(t, res.Payload, "NO DISCLOSURE FOR: antitrust")
	assert.Contains(t, res.Payload, "OVERALL RISK PROFILE: LOW")
	assertCleaned(t, store, "AAPL")
}

func TestMultiRiskSearchTool_TooManyKeywords(t *testing.T) {
	store, root := newStore(t, &fakeSource{docs: map[string]string{"10-K": tenK}})

	res := exec(t, NewMultiRiskSearchTool(store), map[string]string{"ticker": "AAPL", "risk_keywords": "a,b,c,d,e,f,g,h,i,j,k"})
	assert.Equal(t, tools.KindInvalidInput, res.Kind)
	assert.Contains(t, res.Message, "Maximum 10 keywords")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, "LOW", Level(3))
	assert.Equal(t, "MODERATE", Level(4))
	assert.Equal(t, "MODERATE", Level(10))
	assert.Equal(t, "HIGH", Level(11))

	assert.True(t, strings.HasPrefix(OverallLevel(5), "LOW"))
	assert.True(t, strings.HasPrefix(OverallLevel(6), "MODERATE"))
	assert.True(t, strings.HasPrefix(OverallLevel(21), "HIGH"))
}

func TestWindowStaysOnLine(t *testing.T) {
	text := "first line\n" + strings.Repeat("x", 150) + " keyword " + strings.Repeat("y", 150) + "\nnext"
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	mentions, err := FindMentions([]Document{{Form: "10-K", Name: "doc.txt", Path: path}}, "KEYWORD")
	require.NoError(t, err)
	require.Len(t, mentions, 1)

	snippet := mentions[0].Contexts[0]
	assert.Contains(t, snippet, "keyword")
	assert.NotContains(t, snippet, "first line")
	assert.NotContains(t, snippet, "next")
	assert.Equal(t, 100+len(" keyword ")-2+100, len(snippet))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "a b c", Clip("  a\n b\t\tc "))
	long := strings.Repeat("z", 400)
	assert.Equal(t, strings.Repeat("z", 300)+"...", Clip(long))
}
