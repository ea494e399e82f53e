// Package config loads task catalogs declared in CUE or YAML.
//
// A catalog directory holds .cue files (one CUE package) or .yaml/.yml files,
// not both. Both formats share one shape:
//
//	store: {
//		default: path: "records.db"
//		archive: path: "archive.db"
//	}
//	collection: raw_stock_action: {
//		store: "default"
//		columns: [{name: "update_datetime", type: "DATETIME"}, ...]
//	}
//	task: stock: {
//		source: {collection: "raw_stock_action"}
//		target: {collection: "stock_action", store: "archive"}
//		handler:    "stock.raw_actions"
//		batch_size: 100
//		order_by: ["update_datetime", "-sender"]
//		filter_by: canceled: false
//		depends_on: ["accounts"]
//	}
//
// Omitted fields take the defaults of a task definition: store "default",
// batch size 100 and order ["id"]. An explicitly empty order_by is kept empty.
package config
