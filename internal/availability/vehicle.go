package availability

import "github.com/noachFrank/CarServiceServer/internal/models"

// serviceTable lists, per vehicle class, the call classes it can serve. The
// order is mostly a ladder (a bigger vehicle serves everything below it) but
// the luxury SUV breaks it: it serves only sedan, SUV and luxury calls, and
// luxury calls are served by nothing else. Kept as a literal table because
// an ordinal comparison gets the luxury row wrong.
var serviceTable = map[models.VehicleClass]map[models.VehicleClass]bool{
	models.ClassSedan: {
		models.ClassSedan: true,
	},
	models.ClassSUV: {
		models.ClassSedan: true,
		models.ClassSUV:   true,
	},
	models.ClassMinivan: {
		models.ClassSedan:   true,
		models.ClassSUV:     true,
		models.ClassMinivan: true,
	},
	models.ClassVan12: {
		models.ClassSedan:   true,
		models.ClassSUV:     true,
		models.ClassMinivan: true,
		models.ClassVan12:   true,
	},
	models.ClassVan15: {
		models.ClassSedan:   true,
		models.ClassSUV:     true,
		models.ClassMinivan: true,
		models.ClassVan12:   true,
		models.ClassVan15:   true,
	},
	models.ClassLuxurySUV: {
		models.ClassSedan:     true,
		models.ClassSUV:       true,
		models.ClassLuxurySUV: true,
	},
}

// VehicleCapable reports whether the vehicle can serve the call: enough
// seats, and a compatible class per the service table. A driver with no
// primary vehicle on file is not filtered out (nil vehicle passes), matching
// how dispatch has always treated incomplete vehicle records. Unknown
// classes fail closed.
func VehicleCapable(vehicle *models.Vehicle, call *models.Call) bool {
	if vehicle == nil {
		return true
	}
	if call.Passengers > vehicle.Seats {
		return false
	}
	serves, ok := serviceTable[vehicle.Class]
	if !ok {
		return false
	}
	return serves[call.VehicleClass]
}
