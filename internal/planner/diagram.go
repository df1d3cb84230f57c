package planner

import (
	"fmt"
	"strings"

	"github.com/banshee-data/path.planner/internal/config"
	"github.com/banshee-data/path.planner/internal/vehicle"
)

// RoadDiagram renders the corridor around the ego as fixed-width text, one
// row per 10 m of relative s, nearest cars marked by their two-digit id and
// the ego by "@@".
func RoadDiagram(ego *vehicle.EgoVehicle, detected map[int]*vehicle.DetectedVehicle, p config.Params) string {
	var b strings.Builder

	for relS := p.SensorRange; relS > -p.SensorRange; relS -= 10 {
		for lane := 1; lane <= p.NumLanes; lane++ {
			b.WriteByte('|')
			mark := "  "

			if relS == 0 && lane == ego.Lane {
				mark = "@@"
			} else {
				for _, car := range detected {
					if car.Lane == lane && car.RelS <= relS+4 && car.RelS > relS-6 {
						mark = fmt.Sprintf("%02d", car.VehID%100)
					}
				}
			}
			b.WriteString(mark)
		}
		b.WriteString("|\n")
	}
	return b.String()
}
