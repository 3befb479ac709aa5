// Package output renders onvifmesh-cli results.
//
// Every command hands its result to a Formatter chosen by the global
// --output flag. Tables are built by reflection over struct fields; the
// `table` tag renames a column, hides it ("-") or shows it only in wide
// mode (",wide"). JSON and YAML print the value as decoded from the API.
package output
