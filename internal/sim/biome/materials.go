package biome

import "fmt"

// Materials maps every biome to a render style.
type Materials map[Biome]string

func DefaultMaterials() Materials {
	return Materials{
		Water: "water",
		Sand:  "sand",
		Dirt:  "dirt",
		Grass: "grass",
		Stone: "stone",
		Snow:  "snow",
	}
}

// Validate requires a non-empty style for every biome.
func (m Materials) Validate() error {
	for _, b := range All {
		if m[b] == "" {
			return fmt.Errorf("biome: no material for %s", b)
		}
	}
	return nil
}

func (m Materials) Style(b Biome) string {
	return m[b]
}
