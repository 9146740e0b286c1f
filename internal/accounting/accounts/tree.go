package accounts

import (
	"sort"
	"strings"
)

// AccountNode is an account with its children for hierarchical display.
type AccountNode struct {
	ID        int64          `json:"id"`
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Type      AccountType    `json:"accountType"`
	Level     int            `json:"level"`
	IsPosting bool           `json:"isPosting"`
	IsActive  bool           `json:"isActive"`
	ParentID  *int64         `json:"parentId,omitempty"`
	Children  []*AccountNode `json:"children,omitempty"`
}

// BuildTree assembles a forest from a flat account list in two passes keyed by
// id. Accounts whose parent is missing become roots. Parent cycles left by bad
// data are cut so every account appears exactly once.
func BuildTree(accounts []Account) []*AccountNode {
	nodes := make(map[int64]*AccountNode, len(accounts))
	order := make([]*AccountNode, 0, len(accounts))
	for _, acc := range accounts {
		if _, dup := nodes[acc.ID]; dup {
			continue
		}
		node := &AccountNode{
			ID:        acc.ID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Level:     acc.Level,
			IsPosting: acc.IsPosting,
			IsActive:  acc.IsActive,
			ParentID:  acc.ParentID,
		}
		nodes[acc.ID] = node
		order = append(order, node)
	}

	parents := make(map[int64]*AccountNode, len(order))
	var roots []*AccountNode
	for _, node := range order {
		if node.ParentID != nil && *node.ParentID != node.ID {
			if parent, ok := nodes[*node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				parents[node.ID] = parent
				continue
			}
		}
		roots = append(roots, node)
	}

	visited := make(map[int64]bool, len(order))
	var mark func(*AccountNode)
	mark = func(n *AccountNode) {
		visited[n.ID] = true
		for _, child := range n.Children {
			mark(child)
		}
	}
	for _, root := range roots {
		mark(root)
	}
	for _, node := range order {
		if visited[node.ID] {
			continue
		}
		// Unreachable from any root: node sits on a parent cycle.
		parent := parents[node.ID]
		parent.Children = removeChild(parent.Children, node.ID)
		roots = append(roots, node)
		mark(node)
	}

	sortNodes(roots)
	return roots
}

func removeChild(children []*AccountNode, id int64) []*AccountNode {
	out := children[:0]
	for _, c := range children {
		if c.ID != id {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortNodes(nodes []*AccountNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	for _, n := range nodes {
		if len(n.Children) > 0 {
			sortNodes(n.Children)
		}
	}
}

// resolveParent returns the account whose code is the longest strict prefix of code.
func resolveParent(accounts []Account, code string, selfID int64) *Account {
	var best *Account
	for i := range accounts {
		candidate := &accounts[i]
		if candidate.ID == selfID || len(candidate.Code) >= len(code) {
			continue
		}
		if code[:len(candidate.Code)] != candidate.Code {
			continue
		}
		if best == nil || len(candidate.Code) > len(best.Code) {
			best = candidate
		}
	}
	return best
}

// isDescendant reports whether candidate sits below id in the parent chain.
func isDescendant(accounts []Account, id, candidate int64) bool {
	parentOf := make(map[int64]*int64, len(accounts))
	for _, acc := range accounts {
		parentOf[acc.ID] = acc.ParentID
	}
	seen := make(map[int64]bool)
	for cur := candidate; ; {
		if cur == id {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		next, ok := parentOf[cur]
		if !ok || next == nil {
			return false
		}
		cur = *next
	}
}

// prefixReparents lists the accounts whose prefix parent changed once moved
// holds its current code. previousCode is moved's code before the change, empty
// on create. Accounts with a parent outside their code prefix were placed
// explicitly and keep it. all must already contain moved.
func prefixReparents(all []Account, moved Account, previousCode string) []Account {
	byID := make(map[int64]*Account, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}
	var changed []Account
	for i := range all {
		acc := &all[i]
		if acc.ID == moved.ID {
			continue
		}
		switch {
		case acc.ParentID != nil && *acc.ParentID == moved.ID:
			if !hasStrictPrefix(acc.Code, previousCode) && !hasStrictPrefix(acc.Code, moved.Code) {
				continue
			}
		case hasStrictPrefix(acc.Code, moved.Code):
			if acc.ParentID != nil {
				if parent, ok := byID[*acc.ParentID]; ok && !hasStrictPrefix(acc.Code, parent.Code) {
					continue
				}
			}
		default:
			continue
		}
		var target *int64
		if best := resolveParent(all, acc.Code, acc.ID); best != nil && !isDescendant(all, acc.ID, best.ID) {
			id := best.ID
			target = &id
		}
		if sameParent(acc.ParentID, target) {
			continue
		}
		acc.ParentID = target
		changed = append(changed, *acc)
	}
	return changed
}

func hasStrictPrefix(code, prefix string) bool {
	return prefix != "" && len(code) > len(prefix) && strings.HasPrefix(code, prefix)
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
