// Package properties keeps the .properties documents of a workspace sorted.
//
// A document is sorted when its keys ascend and its layout follows the key
// structure:
//   - keys sharing the part before their first dot (a group) sit on
//     adjacent lines
//   - any other pair of consecutive keys is separated by exactly one
//     blank line
//   - a dotted key is ordered by its group against a key without dots
//   - every value is non-blank and written on a single line
//
// Comments directly above a property belong to it and do not count as
// blank lines.
//
// Documents whose names differ only by locale (messages.properties,
// messages_fr.properties) form a resource bundle. Inspecting a document
// reports the whole bundle when another member is unsorted, so fixing one
// member fixes them all.
//
// The Service is registered in the service catalog under Tag and warmed when
// a workspace opens. The Saver is the save-time entry point: it walks the
// open workspaces and fixes the saved document wherever it is unsorted.
//
// Example Usage:
//
//	catalog.Register(properties.Tag, properties.NewFactory(properties.DefaultStyle()))
//
//	saver := properties.NewSaver(hub, registry).WithLogger(logger)
//	report, err := saver.BeforeSave(ctx, "/i18n/messages.properties")
package properties
