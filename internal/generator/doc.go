// Package generator writes a generated project to disk atomically.
//
// # Transactions
//
// Files are staged into a sibling directory of the target and the staging
// directory is renamed into place only after every write succeeded:
//
//	tx := generator.NewTransaction(afero.NewOsFs(), "./billing-api")
//	tx.AddFile("package.json", content, 0644)
//	tx.AddFile("src/main.ts", main, 0644)
//
//	written, err := tx.Commit(ctx, false)
//	if err != nil {
//	    // the target was never touched; the staging area is gone
//	    return err
//	}
//
// With overwrite the existing target is moved aside, the staged tree takes
// its place, and the old tree is deleted last. If the swap fails the old
// tree is moved back.
//
// # Existing targets
//
// When the target already has content, a Resolver decides whether to
// replace it: always (--overwrite), never (non-interactive runs), or by
// asking through a terminal menu that can show the change summary first.
package generator
