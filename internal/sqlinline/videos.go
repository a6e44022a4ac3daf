package sqlinline

const QInsertVideo = `--sql 55b1b3a6-b8f3-4ef9-9370-1002ea9ca0c8
insert into videos(
  id,
  prompt,
  title,
  duration_seconds,
  resolution,
  storage_key,
  mime,
  bytes,
  created_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::int,
  $5::text,
  $6::text,
  $7::text,
  $8::bigint,
  now()
) returning created_at;
`

const QListVideos = `--sql 48b8f0ec-0cd3-4ced-bbfe-5f8e073c6326
select id, prompt, title, duration_seconds, resolution, storage_key, mime, bytes, created_at
from videos
order by created_at desc;
`

const QSelectVideoByID = `--sql bd9da798-1fc8-479c-8010-d03ba52d0f0e
select id, prompt, title, duration_seconds, resolution, storage_key, mime, bytes, created_at
from videos
where id = $1::uuid
limit 1;
`

const QDeleteVideo = `--sql 8a9e0589-4b48-4849-a4ab-a94122c470a5
delete from videos
where id = $1::uuid
returning storage_key;
`
