package provider

import (
    "sort"
    "strings"
    "time"
)

// Normalize enforces the canonical ordering invariants on a fetched result:
// bars ascending by date with one bar per date, news newest-first with
// duplicate URL+title entries dropped. Adapters produce near-canonical data;
// this runs once after every successful fetch so no provider quirk leaks out.
func Normalize(res *Result) {
    if res == nil { return }
    switch res.Kind {
    case KindHistory:
        res.Bars = normalizeBars(res.Bars)
    case KindNews:
        res.News = normalizeNews(res.News)
    }
}

func normalizeBars(bars []PriceBar) []PriceBar {
    if len(bars) == 0 { return bars }
    sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
    out := bars[:0]
    for _, b := range bars {
        // same trade date: later entry wins
        if n := len(out); n > 0 && sameDay(out[n-1].Date, b.Date) {
            out[n-1] = b
            continue
        }
        out = append(out, b)
    }
    return out
}

func normalizeNews(items []NewsItem) []NewsItem {
    if len(items) == 0 { return items }
    sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
    seen := make(map[string]struct{}, len(items))
    out := items[:0]
    for _, it := range items {
        k := newsKey(it)
        if _, dup := seen[k]; dup { continue }
        seen[k] = struct{}{}
        out = append(out, it)
    }
    return out
}

// newsKey builds the dedup key from the normalized URL and title.
func newsKey(it NewsItem) string {
    u := strings.TrimRight(strings.ToLower(strings.TrimSpace(it.URL)), "/")
    u = strings.TrimPrefix(u, "http://")
    u = strings.TrimPrefix(u, "https://")
    t := strings.Join(strings.Fields(strings.ToLower(it.Title)), " ")
    return u + "|" + t
}

func sameDay(a, b time.Time) bool {
    ay, am, ad := a.UTC().Date()
    by, bm, bd := b.UTC().Date()
    return ay == by && am == bm && ad == bd
}
