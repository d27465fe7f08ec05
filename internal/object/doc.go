// Package object defines the dynamically typed message model exchanged
// over msgport connections.
//
// A message value is one of: Dict, Array, Data ([]byte), int64, string,
// UUID, or an error. Type tokens are process-wide singletons compared by
// identity, as are the three terminal connection sentinels. Visitor
// helpers on Dict and Array replace the context-pointer callbacks a
// C-style binding would use.
package object
