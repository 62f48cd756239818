// Command catalogd is the catalog server process: it wires together the
// storage, authorization, task-queue, and credential-vending layers under
// internal/ and runs them until told to stop. Mounting the Iceberg REST
// Catalog and Management API route trees onto the services this process
// constructs is left to an external router; catalogd's job ends at
// constructing and supervising those services.
package main

func main() {
	Execute()
}
