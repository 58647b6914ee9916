package ingestion

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forgetmenot/remind/internal/domain"
)

// NameMapping is the caregiver's response to a face-cluster review bundle.
// Exactly one of Forward or Reverse should be populated; ApplyNameMapping
// accepts either shape per §4.3 S2.
type NameMapping struct {
	// Forward maps name -> "cluster_id[,cluster_id...]", supporting merges.
	Forward map[string]string
	// Reverse maps cluster_id (as string) -> name, "" or literal null meaning delete.
	Reverse map[string]*string
}

// ApplyNameMapping turns S1's FaceClusters plus a caregiver NameMapping into
// canonical Person records. Unmapped clusters are dropped. Merging two
// clusters into one name concatenates their sampled faces, bounded back
// down to 16, and names the merge after the first cluster listed.
func ApplyNameMapping(clusters []domain.FaceCluster, mapping NameMapping) ([]domain.Person, error) {
	byID := make(map[int]domain.FaceCluster, len(clusters))
	for _, c := range clusters {
		byID[c.ClusterID] = c
	}

	if len(mapping.Forward) > 0 {
		return applyForward(byID, mapping.Forward)
	}
	return applyReverse(byID, mapping.Reverse)
}

func applyForward(byID map[int]domain.FaceCluster, forward map[string]string) ([]domain.Person, error) {
	now := time.Now().UTC()
	var people []domain.Person
	for name, idList := range forward {
		ids, err := parseClusterIDs(idList)
		if err != nil {
			return nil, fmt.Errorf("name mapping %q: %w", name, err)
		}
		var merged []string
		for _, id := range ids {
			c, ok := byID[id]
			if !ok {
				continue
			}
			merged = append(merged, c.SampledFaces...)
		}
		if len(merged) > maxSampledFaces {
			merged = merged[:maxSampledFaces]
		}
		people = append(people, domain.Person{
			Name:          normalizeName(name),
			DisplayName:   displayCase(name),
			FaceExemplars: merged,
			CreatedAt:     now,
		})
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

func applyReverse(byID map[int]domain.FaceCluster, reverse map[string]*string) ([]domain.Person, error) {
	now := time.Now().UTC()
	byName := make(map[string][]string)
	for idStr, namePtr := range reverse {
		if namePtr == nil || strings.TrimSpace(*namePtr) == "" {
			continue // delete
		}
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil {
			return nil, fmt.Errorf("name mapping cluster id %q: %w", idStr, err)
		}
		c, ok := byID[id]
		if !ok {
			continue
		}
		name := normalizeName(*namePtr)
		byName[name] = append(byName[name], c.SampledFaces...)
	}
	var people []domain.Person
	for name, faces := range byName {
		if len(faces) > maxSampledFaces {
			faces = faces[:maxSampledFaces]
		}
		people = append(people, domain.Person{
			Name:          name,
			DisplayName:   displayCase(name),
			FaceExemplars: faces,
			CreatedAt:     now,
		})
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

func parseClusterIDs(idList string) ([]int, error) {
	parts := strings.Split(idList, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid cluster id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func displayCase(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
