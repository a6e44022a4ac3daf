package sqlinline

// The active_generation table is a single-row journal of the in-flight remote
// operation. The singleton column is constrained to true so an upsert always
// replaces the previous handle.

const QUpsertActiveGeneration = `--sql 73d0aaf6-7e92-47e5-9802-3756f684111e
insert into active_generation(
  singleton,
  operation_name,
  prompt,
  duration_seconds,
  resolution,
  started_at
) values (
  true,
  $1::text,
  $2::text,
  $3::int,
  $4::text,
  now()
)
on conflict (singleton) do update set
  operation_name = excluded.operation_name,
  prompt = excluded.prompt,
  duration_seconds = excluded.duration_seconds,
  resolution = excluded.resolution,
  started_at = excluded.started_at;
`

const QSelectActiveGeneration = `--sql 5a38a78c-919d-47d7-bafb-ee5408c210fa
select operation_name, prompt, duration_seconds, resolution
from active_generation
where singleton
limit 1;
`

const QClearActiveGeneration = `--sql 1cdff47c-c74b-44ea-9f16-2d715dfe4896
delete from active_generation;
`
