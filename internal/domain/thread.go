package domain

import (
	"errors"
	"fmt"
	"sort"
)

// maxParentChainDepth bounds the parent-chain walk so a corrupted chain (or a
// cycle) surfaces as an integrity error instead of looping forever.
const maxParentChainDepth = 64

// ErrBrokenThread indicates a discussion whose parent chain never reaches an
// article. This is a data-integrity violation and must not be defaulted away.
var ErrBrokenThread = errors.New("discussion does not resolve to an article")

// FlattenForest orders an article's discussions in pre-order: each root
// first, then its replies recursively, children and roots both sorted by id
// ascending. Rows reachable only through missing parents are dropped.
func FlattenForest(discussions []Discussion) []Discussion {
	childrenByParent := make(map[int64][]Discussion)
	var roots []Discussion
	for _, d := range discussions {
		if d.ParentID == nil {
			roots = append(roots, d)
			continue
		}
		childrenByParent[*d.ParentID] = append(childrenByParent[*d.ParentID], d)
	}

	sortByID(roots)
	for _, children := range childrenByParent {
		sortByID(children)
	}

	flattened := make([]Discussion, 0, len(discussions))
	visited := make(map[int64]bool, len(discussions))
	var appendSubtree func(d Discussion)
	appendSubtree = func(d Discussion) {
		if visited[d.ID] {
			return
		}
		visited[d.ID] = true
		flattened = append(flattened, d)
		for _, child := range childrenByParent[d.ID] {
			appendSubtree(child)
		}
	}

	for _, root := range roots {
		appendSubtree(root)
	}
	return flattened
}

// ThreadedDiscussion is a discussion annotated with its nesting depth for
// threaded rendering. Unclassified replies display neutral/substantive.
type ThreadedDiscussion struct {
	Discussion
	NestingDepth int `json:"nesting_depth"`
}

// BuildThread returns the threaded, depth-annotated rendering of an
// article's discussions in the same pre-order as FlattenForest.
func BuildThread(discussions []Discussion) []ThreadedDiscussion {
	depthByID := make(map[int64]int, len(discussions))
	flattened := FlattenForest(discussions)

	threaded := make([]ThreadedDiscussion, 0, len(flattened))
	for _, d := range flattened {
		depth := 0
		if d.ParentID != nil {
			depth = depthByID[*d.ParentID] + 1
		}
		depthByID[d.ID] = depth

		item := ThreadedDiscussion{Discussion: d, NestingDepth: depth}
		if item.Sentiment == "" {
			item.Sentiment = SentimentNeutral
		}
		if item.ResponseDepth == "" {
			item.ResponseDepth = DepthSubstantive
		}
		threaded = append(threaded, item)
	}
	return threaded
}

// DiscussionLookup loads a discussion by id. It is satisfied by the document
// repository; tests supply an in-memory map.
type DiscussionLookup func(id int64) (*Discussion, error)

// ResolveOwningArticleID walks the parent chain of d until a node with a
// direct article reference is found. A chain that exceeds the depth bound or
// dead-ends returns ErrBrokenThread.
func ResolveOwningArticleID(d *Discussion, lookup DiscussionLookup) (int64, error) {
	current := d
	for depth := 0; depth <= maxParentChainDepth; depth++ {
		if current.ArticleID != nil {
			return *current.ArticleID, nil
		}
		if current.ParentID == nil {
			return 0, fmt.Errorf("discussion %d: %w", d.ID, ErrBrokenThread)
		}

		parent, err := lookup(*current.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return 0, fmt.Errorf("discussion %d: parent %d missing: %w", d.ID, *current.ParentID, ErrBrokenThread)
			}
			return 0, fmt.Errorf("load parent discussion %d: %w", *current.ParentID, err)
		}
		current = parent
	}
	return 0, fmt.Errorf("discussion %d: parent chain too deep: %w", d.ID, ErrBrokenThread)
}

func sortByID(discussions []Discussion) {
	sort.Slice(discussions, func(i, j int) bool {
		return discussions[i].ID < discussions[j].ID
	})
}
