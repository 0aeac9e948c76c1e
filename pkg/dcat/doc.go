/*
Package dcat traverses DCAT/JSON-LD catalog payloads returned by
connector control planes: locating dcat:dataset entries, identifying
digital twin registry assets by dct:type (compact or expanded form),
and extracting odrl:hasPolicy policies with @id/@type stripped.

Checksum provides the SHA3-256 digest used to key negotiated EDRs by
the filter expression or policy set that produced them; it canonicalizes
map ordering before hashing so two semantically identical values from
different connectors always hash the same.
*/
package dcat
