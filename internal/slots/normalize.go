package slots

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jason-s-yu/lobbyhub/internal/models"
)

// Key spellings seen in matchmaking payloads, most canonical first.
var (
	roleKeys      = []string{"role", "roleName", "role_name", "name"}
	countKeys     = []string{"slots", "slotCount", "slot_count", "seatCount", "seat_count", "count", "size"}
	indexListKeys = []string{"slotIndices", "slot_indices", "slotIndexes", "seatIndices", "seat_indices"}
	heroListKeys  = []string{"heroIds", "hero_ids", "heroIDs", "characterIds", "character_ids"}
	ownerListKeys = []string{"ownerIds", "owner_ids", "ownerIDs", "userIds", "user_ids"}
	memberKeys    = []string{"members", "roster", "players"}
	bindingKeys   = []string{"seats", "roleSlots", "role_slots", "slotBindings", "slot_bindings"}
	wrapperKeys   = []string{"assignments", "roles", "groups"}

	memberHeroKeys  = []string{"heroId", "hero_id", "heroID", "characterId", "character_id"}
	memberOwnerKeys = []string{"ownerId", "owner_id", "ownerID", "userId", "user_id"}
	memberSlotKeys  = []string{"slotIndex", "slot_index", "seatIndex", "seat_index", "slotNo", "slot_no", "index"}
)

// NormalizePlan turns a raw matchmaking assignment payload into canonical role
// groups. It accepts an array of groups, a single group, an object wrapping
// the groups under "assignments", "roles" or "groups", or an object keyed by
// role name (groups are then ordered by role name). Empty input yields no
// groups.
func NormalizePlan(raw []byte) ([]models.Assignment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode assignment list: %w", err)
		}
		return normalizeGroups(items, nil)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode assignment object: %w", err)
		}
		if inner, ok := pick(obj, wrapperKeys...); ok {
			return NormalizePlan(inner)
		}
		if _, ok := pick(obj, roleKeys...); ok {
			group, err := normalizeGroup(obj, "")
			if err != nil {
				return nil, err
			}
			return []models.Assignment{group}, nil
		}
		roles := make([]string, 0, len(obj))
		for role := range obj {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		items := make([]json.RawMessage, 0, len(roles))
		for _, role := range roles {
			items = append(items, obj[role])
		}
		return normalizeGroups(items, roles)
	default:
		return nil, fmt.Errorf("assignment plan must be a JSON array or object")
	}
}

func normalizeGroups(items []json.RawMessage, roles []string) ([]models.Assignment, error) {
	groups := make([]models.Assignment, 0, len(items))
	for i, item := range items {
		fallbackRole := ""
		if roles != nil {
			fallbackRole = roles[i]
		}
		obj, err := groupObject(item)
		if err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i, err)
		}
		group, err := normalizeGroup(obj, fallbackRole)
		if err != nil {
			return nil, fmt.Errorf("assignment %d: %w", i, err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// groupObject decodes one group. A bare number is shorthand for a slot count.
func groupObject(item json.RawMessage) (map[string]json.RawMessage, error) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] != '{' {
		if _, ok := intValue(item); ok {
			return map[string]json.RawMessage{"slots": item}, nil
		}
		return nil, fmt.Errorf("unsupported group shape %s", item)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func normalizeGroup(obj map[string]json.RawMessage, fallbackRole string) (models.Assignment, error) {
	group := models.Assignment{Role: fallbackRole}
	if raw, ok := pick(obj, roleKeys...); ok {
		if role, ok := stringValue(raw); ok && role != "" {
			group.Role = role
		}
	}

	var bindings []models.AssignmentMember
	if raw, ok := pick(obj, countKeys...); ok {
		if n, ok := intValue(raw); ok {
			group.SlotCount = max(n, 0)
		} else if list, err := memberList(raw); err == nil {
			// "slots" sometimes carries the per-seat bindings themselves
			bindings = list
		} else {
			return group, fmt.Errorf("slot count: %w", err)
		}
	}
	if raw, ok := pick(obj, indexListKeys...); ok {
		group.SlotIndices = intList(raw)
	}
	if raw, ok := pick(obj, heroListKeys...); ok {
		group.HeroIDs = stringList(raw)
	}
	if raw, ok := pick(obj, ownerListKeys...); ok {
		group.OwnerIDs = stringList(raw)
	}
	if raw, ok := pick(obj, memberKeys...); ok {
		list, err := memberList(raw)
		if err != nil {
			return group, fmt.Errorf("members: %w", err)
		}
		group.Members = list
	}
	if raw, ok := pick(obj, bindingKeys...); ok {
		list, err := memberList(raw)
		if err != nil {
			return group, fmt.Errorf("seat bindings: %w", err)
		}
		bindings = append(bindings, list...)
	}
	group.Members = overlay(bindings, group.Members)
	return group, nil
}

// overlay merges explicit per-seat bindings over the member list position by
// position; a binding value wins over the member value when set.
func overlay(bindings, members []models.AssignmentMember) []models.AssignmentMember {
	if len(bindings) == 0 {
		return members
	}
	out := make([]models.AssignmentMember, max(len(bindings), len(members)))
	copy(out, members)
	for i, b := range bindings {
		if b.HeroID != "" {
			out[i].HeroID = b.HeroID
		}
		if b.OwnerID != "" {
			out[i].OwnerID = b.OwnerID
		}
		if b.SlotIndex != nil {
			out[i].SlotIndex = b.SlotIndex
		}
	}
	return out
}

func memberList(raw json.RawMessage) ([]models.AssignmentMember, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	members := make([]models.AssignmentMember, 0, len(items))
	for _, item := range items {
		var m models.AssignmentMember
		if v, ok := pick(item, memberHeroKeys...); ok {
			m.HeroID, _ = stringValue(v)
		} else if hero, ok := item["hero"]; ok {
			var nested map[string]json.RawMessage
			if json.Unmarshal(hero, &nested) == nil {
				if id, ok := nested["id"]; ok {
					m.HeroID, _ = stringValue(id)
				}
			}
		}
		if v, ok := pick(item, memberOwnerKeys...); ok {
			m.OwnerID, _ = stringValue(v)
		}
		if v, ok := pick(item, memberSlotKeys...); ok {
			if n, ok := intValue(v); ok {
				m.SlotIndex = &n
			}
		}
		members = append(members, m)
	}
	return members, nil
}

// pick returns the first present, non-null value among keys.
func pick(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

func stringValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// maxIndex bounds counts and seat indices; anything larger is garbage.
const maxIndex = math.MaxInt32

// intValue reads a whole number, written as a JSON number or numeric string.
// Fractions and out-of-range values are rejected, never truncated.
func intValue(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := strconv.Atoi(n.String()); err == nil {
			return v, v >= -maxIndex && v <= maxIndex
		}
		// 2.0 and 1e2 are whole numbers too
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > maxIndex {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v, v >= -maxIndex && v <= maxIndex
		}
	}
	return 0, false
}

func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s, ok := stringValue(raw); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := stringValue(item)
		out = append(out, s)
	}
	return out
}

// intList keeps one entry per position, nil where the value is missing or
// not a whole number, so it stays aligned with the other per-slot lists.
func intList(raw json.RawMessage) []*int {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if n, ok := intValue(raw); ok {
			return []*int{&n}
		}
		return nil
	}
	out := make([]*int, 0, len(items))
	for _, item := range items {
		if n, ok := intValue(item); ok {
			out = append(out, &n)
		} else {
			out = append(out, nil)
		}
	}
	return out
}
