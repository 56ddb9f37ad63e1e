// Package station defines the core types shared across the harvester: the
// station entity, its sensor readings, the registry built from the listing page
// and the persistence contracts the pipeline depends on.
package station
