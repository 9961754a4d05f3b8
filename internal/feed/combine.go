package feed

import "slices"

// CombineFeeds returns a new slice holding existing plus result.Posts, every
// new post annotated with result's subscription, sorted by PubDate
// descending.
//
// Ordering is stable: posts with equal dates keep their input order, and
// existing posts come before new ones. Neither input is modified, existing
// posts keep their original subscription, and duplicates are kept.
//
// An existing slice that is already descending (the normal case, since it is
// usually the previous result) is merged in linear time; only the incoming
// posts are sorted.
func CombineFeeds(existing []Post, result FeedResult) []Post {
	sub := result.Subscription.clone()

	incoming := make([]Post, len(result.Posts))
	for i, p := range result.Posts {
		p.Subscription = sub
		incoming[i] = p
	}
	slices.SortStableFunc(incoming, byPubDateDesc)

	if !IsDescending(existing) {
		combined := make([]Post, 0, len(existing)+len(incoming))
		combined = append(combined, existing...)
		combined = append(combined, incoming...)
		slices.SortStableFunc(combined, byPubDateDesc)
		return combined
	}

	return merge(existing, incoming)
}

// merge interleaves two descending slices. On equal dates a wins.
func merge(a, b []Post) []Post {
	out := make([]Post, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if byPubDateDesc(b[j], a[i]) < 0 {
			out = append(out, b[j])
			j++
			continue
		}
		out = append(out, a[i])
		i++
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// IsDescending reports whether posts are non-increasing by PubDate.
func IsDescending(posts []Post) bool {
	return slices.IsSortedFunc(posts, byPubDateDesc)
}

func byPubDateDesc(a, b Post) int {
	return b.PubDate.Compare(a.PubDate.Time)
}
